// Package errors provides standardized error handling patterns for fnruntime.
//
// # Overview
//
// The package has two layers. The first is the three-class classification system
// shared by the infrastructure packages: Transient (temporary, retryable), Invalid
// (bad input, non-retryable) and Fatal (unrecoverable, stop processing).
//
// The second is the runtime taxonomy used on the invocation path:
//
//   - ResolutionError: a target cannot be bound to an execution contract. Startup aborts.
//   - TranslationError: an event cannot be converted between the legacy envelope and
//     CloudEvents. The enclosing request answers 500.
//   - InvocationError: user code returned an error or panicked. The request answers 500.
//   - TimeoutError: the execution deadline expired. The request answers 408.
//   - UsageError: the message API was misused, for example by reading both body views.
//
// HTTPStatus maps any error in this taxonomy to its status code, so client-observable
// behavior stays deterministic.
//
// # Error Wrapping Pattern
//
// All infrastructure error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	var re *errors.ResolutionError
//	if errors.As(err, &re) && re.Kind == errors.NotFound {
//	    // target is not registered
//	}
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error values are safe to
// share across goroutines after creation.
package errors
