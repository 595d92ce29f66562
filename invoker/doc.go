// Package invoker serves one resolved function contract over HTTP.
//
// An Invoker owns the lifecycle of every request: it reads and decodes the
// inbound message on the request goroutine, runs the user function in its own
// goroutine under the execution deadline, and writes exactly one response.
//
// Completion is decided by a single compare-and-swap between the function
// goroutine and the deadline timer. The winner reports to the request
// goroutine, which is the only writer of the http.ResponseWriter. Output the
// function buffers after losing the race is discarded.
//
// Status codes:
//
//	200  function returned nil before the deadline (HTTP functions choose their own status)
//	400  request body could not be decoded for a typed contract
//	404  /favicon.ico and /robots.txt on HTTP contracts
//	408  execution deadline expired
//	413  request body exceeded the configured limit
//	500  function error or panic, event translation failure
package invoker
