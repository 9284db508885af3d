package queue

import "github.com/redis/go-redis/v9"

// Every state transition is one script so claim, complete, fail and
// stalled recovery are atomic with respect to each other.

// Job hashes are resolved from ids with a prefix argument, so these
// scripts assume a single Redis node (no cluster slot routing).

const trimFn = `
local function trim(setKey, now, keepCount, keepAge, prefix)
  if keepAge > 0 then
    local old = redis.call("ZRANGEBYSCORE", setKey, "-inf", now - keepAge)
    for _, id in ipairs(old) do
      redis.call("DEL", prefix .. id)
      redis.call("ZREM", setKey, id)
    end
  end
  if keepCount > 0 then
    local extra = redis.call("ZRANGE", setKey, 0, -(keepCount + 1))
    for _, id in ipairs(extra) do
      redis.call("DEL", prefix .. id)
      redis.call("ZREM", setKey, id)
    end
  end
end
`

const requeueFn = `
local function requeue(waitKey, seqKey, jobKey, id)
  local prio = tonumber(redis.call("HGET", jobKey, "priority") or "0")
  local seq = redis.call("INCR", seqKey)
  redis.call("ZADD", waitKey, prio * 4294967296 + seq, id)
  redis.call("HSET", jobKey, "state", "waiting")
end
`

// KEYS: job, wait, delayed, seq
// ARGV: id, name, data, priority, attempts, backoffType, backoffDelay,
// timestamp, delay, maxWaiting
// Returns 1 on insert, -1 if the id exists, -2 if the queue is full.
var addJobScript = redis.NewScript(requeueFn + `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return -1
end
local maxWaiting = tonumber(ARGV[10])
if maxWaiting > 0 and (redis.call("ZCARD", KEYS[2]) + redis.call("ZCARD", KEYS[3])) >= maxWaiting then
  return -2
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1], "name", ARGV[2], "data", ARGV[3], "priority", ARGV[4],
  "attempts", ARGV[5], "backoffType", ARGV[6], "backoffDelay", ARGV[7],
  "timestamp", ARGV[8], "delay", ARGV[9], "attemptsMade", "0")
local delay = tonumber(ARGV[9])
if delay > 0 then
  redis.call("ZADD", KEYS[3], tonumber(ARGV[8]) + delay, ARGV[1])
  redis.call("HSET", KEYS[1], "state", "delayed")
else
  requeue(KEYS[2], KEYS[4], KEYS[1], ARGV[1])
end
return 1
`)

// KEYS: wait, delayed, active, seq
// ARGV: now, lockDuration, token, jobPrefix
// Promotes due delayed jobs, then pops the best waiting job and locks it.
// The attempt counter is incremented on claim.
var claimScript = redis.NewScript(requeueFn + `
local now = tonumber(ARGV[1])
local due = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", now, "LIMIT", 0, 100)
for _, id in ipairs(due) do
  redis.call("ZREM", KEYS[2], id)
  requeue(KEYS[1], KEYS[4], ARGV[4] .. id, id)
end
while true do
  local popped = redis.call("ZPOPMIN", KEYS[1])
  if #popped == 0 then
    return false
  end
  local id = popped[1]
  local jobKey = ARGV[4] .. id
  if redis.call("EXISTS", jobKey) == 1 then
    redis.call("ZADD", KEYS[3], now + tonumber(ARGV[2]), id)
    redis.call("HSET", jobKey, "state", "active", "lockToken", ARGV[3], "processedOn", ARGV[1])
    redis.call("HINCRBY", jobKey, "attemptsMade", 1)
    return redis.call("HGETALL", jobKey)
  end
end
`)

// KEYS: job, active, completed
// ARGV: id, token, returnvalue, now, keepCount, keepAge, jobPrefix
var completeScript = redis.NewScript(trimFn + `
if redis.call("HGET", KEYS[1], "lockToken") ~= ARGV[2] then
  return -1
end
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("HDEL", KEYS[1], "lockToken")
redis.call("HSET", KEYS[1], "state", "completed", "returnvalue", ARGV[3], "finishedOn", ARGV[4])
redis.call("ZADD", KEYS[3], tonumber(ARGV[4]), ARGV[1])
trim(KEYS[3], tonumber(ARGV[4]), tonumber(ARGV[5]), tonumber(ARGV[6]), ARGV[7])
return 1
`)

// KEYS: job, active, delayed, failed
// ARGV: id, token, reason, now, retryDelay, unrecoverable, keepCount, keepAge, jobPrefix
// Returns 0 when the job was scheduled for retry, 1 when it failed for
// good and -1 when the lock was lost.
var failScript = redis.NewScript(trimFn + `
if redis.call("HGET", KEYS[1], "lockToken") ~= ARGV[2] then
  return -1
end
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("HDEL", KEYS[1], "lockToken")
local made = tonumber(redis.call("HGET", KEYS[1], "attemptsMade") or "0")
local max = tonumber(redis.call("HGET", KEYS[1], "attempts") or "1")
local now = tonumber(ARGV[4])
if ARGV[6] == "0" and made < max then
  redis.call("ZADD", KEYS[3], now + tonumber(ARGV[5]), ARGV[1])
  redis.call("HSET", KEYS[1], "state", "delayed", "failedReason", ARGV[3])
  return 0
end
redis.call("HSET", KEYS[1], "state", "failed", "failedReason", ARGV[3], "finishedOn", ARGV[4])
redis.call("ZADD", KEYS[4], now, ARGV[1])
trim(KEYS[4], now, tonumber(ARGV[7]), tonumber(ARGV[8]), ARGV[9])
return 1
`)

// KEYS: job, active
// ARGV: id, token, deadline
var extendLockScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "lockToken") ~= ARGV[2] then
  return 0
end
redis.call("ZADD", KEYS[2], tonumber(ARGV[3]), ARGV[1])
return 1
`)

// KEYS: active, wait, failed, seq
// ARGV: now, jobPrefix, keepCount, keepAge, reason
// Returns {requeuedCount, failedId...}.
var recoverStalledScript = redis.NewScript(trimFn + requeueFn + `
local now = tonumber(ARGV[1])
local stalled = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", now)
local result = {0}
for _, id in ipairs(stalled) do
  redis.call("ZREM", KEYS[1], id)
  local jobKey = ARGV[2] .. id
  if redis.call("EXISTS", jobKey) == 1 then
    redis.call("HDEL", jobKey, "lockToken")
    local made = tonumber(redis.call("HGET", jobKey, "attemptsMade") or "0")
    local max = tonumber(redis.call("HGET", jobKey, "attempts") or "1")
    if made >= max then
      redis.call("HSET", jobKey, "state", "failed", "failedReason", ARGV[5], "finishedOn", ARGV[1])
      redis.call("ZADD", KEYS[3], now, id)
      table.insert(result, id)
    else
      requeue(KEYS[2], KEYS[4], jobKey, id)
      result[1] = result[1] + 1
    end
  end
end
if #result > 1 then
  trim(KEYS[3], now, tonumber(ARGV[3]), tonumber(ARGV[4]), ARGV[2])
end
return result
`)
