package lambda

import "context"

// Function states reported by the platform.
const (
	StatePending  = "Pending"
	StateActive   = "Active"
	StateInactive = "Inactive"
	StateFailed   = "Failed"
)

// FunctionDefinition is everything needed to create a function from an image.
type FunctionDefinition struct {
	Name      string
	Role      string
	Image     string
	MemoryMB  int32
	StorageMB int32
	Timeout   int32 // seconds
	Env       map[string]string
	Tags      map[string]string
}

// FunctionStatus is the provisioning state of a function.
type FunctionStatus struct {
	State  string
	Reason string
}

// Permission is a resource policy statement granted on a function.
type Permission struct {
	StatementID           string
	Action                string
	Principal             string
	FunctionURLAuthType   string
	InvokedViaFunctionURL bool
}

// FunctionPage is one page of a function listing.
type FunctionPage struct {
	Names      []string
	NextMarker string // empty on the last page
}

// Platform is the subset of the Lambda API the lifecycle manager depends on.
type Platform interface {
	CreateFunction(ctx context.Context, def FunctionDefinition) error
	GetFunction(ctx context.Context, name string) (FunctionStatus, error)
	DeleteFunction(ctx context.Context, name string) error
	CreateFunctionURL(ctx context.Context, name string) (string, error)
	AddPermission(ctx context.Context, name string, perm Permission) error
	ListFunctions(ctx context.Context, marker string) (FunctionPage, error)
}

// urlPermissions are granted once the function URL exists. A public URL
// answers only when anyone may both call the URL and invoke the function
// through it. The URL uses auth type NONE; callers authenticate with the
// instance key instead.
var urlPermissions = []Permission{
	{
		StatementID:         "FunctionURLAllowPublicAccess",
		Action:              "lambda:InvokeFunctionUrl",
		Principal:           "*",
		FunctionURLAuthType: "NONE",
	},
	{
		StatementID:           "FunctionURLAllowInvokeAction",
		Action:                "lambda:InvokeFunction",
		Principal:             "*",
		InvokedViaFunctionURL: true,
	},
}
