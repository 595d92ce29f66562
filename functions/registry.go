package functions

// Factory constructs a function instance.
type Factory func() (any, error)

// Registrar accepts named function factories. Names are the values a deployment
// uses as its function target.
type Registrar interface {
	Register(name string, factory Factory) error
}

// RegisterFunc is the signature of the RegisterFunctions symbol exported by a
// function plugin.
type RegisterFunc func(Registrar) error

// Member is a named method value of a MemberSet.
type Member struct {
	Name string
	// Func is one of:
	//	func(context.Context, EventPayload) error
	//	func(context.Context, EventPayload, *EventContext) error
	//	func(context.Context, HTTPRequest, HTTPResponse) error
	Func any
}

// MemberSet is implemented by types whose methods are addressed by "Type.Member"
// targets. Members are matched in the order returned.
type MemberSet interface {
	Members() []Member
}
