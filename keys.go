package redisq

import "fmt"

// Key schema. Q is the queue name; J is the job ID. All keys for a queue
// share Q as prefix; keeping the formatting centralized here is what lets
// every component agree on the wire contract without repeating string
// literals.

func liveKey(q string) string  { return q + ".live" }
func countKey(q string) string { return q + ".count" }

func envKey(q, j string) string { return fmt.Sprintf("%s.env.%s", q, j) }
func outKey(q, j string) string { return fmt.Sprintf("%s.out.%s", q, j) }

func startKey(q, j, token string) string { return fmt.Sprintf("%s.start.%s.%s", q, j, token) }
func aliveKey(q, j, token string) string { return fmt.Sprintf("%s.alive.%s.%s", q, j, token) }

func startPattern(q, j string) string { return fmt.Sprintf("%s.start.%s.*", q, j) }
func alivePattern(q, j string) string { return fmt.Sprintf("%s.alive.%s.*", q, j) }

func envPattern(q string) string { return q + ".env.*" }
func outPattern(q string) string { return q + ".out.*" }

// startPatternAll and alivePatternAll match every start/alive marker for
// any job on q, used when tearing down a whole queue rather than one job.
func startPatternAll(q string) string { return q + ".start.*" }
func alivePatternAll(q string) string { return q + ".alive.*" }

// EnvelopeKey, ResultKey, StartKey, and AliveKey expose the key schema to
// out-of-package worker implementations (including internal/testworker):
// a worker fetches its job's envelope, pushes result chunks, and announces
// start/alive markers at exactly these keys.
func EnvelopeKey(queue, job string) string     { return envKey(queue, job) }
func ResultKey(queue, job string) string       { return outKey(queue, job) }
func StartKey(queue, job, token string) string { return startKey(queue, job, token) }
func AliveKey(queue, job, token string) string { return aliveKey(queue, job, token) }
