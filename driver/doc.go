// Package driver runs conversations: it sends a conversation to a backend,
// dispatches requested tools, classifies how each completion ended and routes
// the outcome to the conversation's handlers.
//
// Each Run is a sequential loop confined to the calling goroutine:
//
//	Running -> (tool_calls) AwaitingTools -> Running
//	Running -> (stop)       success handler -> Running | Terminal
//	Running -> (length, content_filter, function_call)
//	                        failure handler -> Running | Terminal
//
// A handler returning a nil conversation ends the run. Backend calls are
// bounded by a Gate, which may be shared by many drivers.
package driver
