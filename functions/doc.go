// Package functions is the authoring API for user functions.
//
// It is the only runtime package that user code may reference. A function is a
// named factory registered with a Registrar; the value it constructs must
// satisfy exactly one of the execution contracts:
//
//   - HTTPFunction: receives the request and a buffered response
//   - CloudEventFunction: receives a CloudEvents v1 event
//   - RawEventFunction: receives the legacy event payload as raw JSON plus its context
//   - TypedEventFunction: receives the legacy event payload decoded into a declared type
//   - TypedFunction: decodes the request body, returns a value encoded as the response
//
// Types that predate the contract interfaces can expose named methods through
// MemberSet; a target of the form "Type.Member" binds the named member.
//
// Example:
//
//	type Echo struct{}
//
//	func (Echo) Service(ctx context.Context, req functions.HTTPRequest, resp functions.HTTPResponse) error {
//	    in, err := req.InputStream()
//	    if err != nil {
//	        return err
//	    }
//	    out, err := resp.OutputStream()
//	    if err != nil {
//	        return err
//	    }
//	    _, err = io.Copy(out, in)
//	    return err
//	}
//
//	func RegisterFunctions(r functions.Registrar) error {
//	    return r.Register("Echo", func() (any, error) { return Echo{}, nil })
//	}
package functions
