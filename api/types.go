package api

// NamePrefix marks every instance created by lemma. Listing filters on it.
const NamePrefix = "lemma-"

// Reserved environment variables. The lifecycle manager always sets them and
// they override anything the user passes with --env.
const (
	EnvInstance = "LEMMA_INSTANCE"
	EnvAPIKey   = "LEMMA_API_KEY"
	EnvTimeout  = "LEMMA_TIMEOUT"
	EnvURL      = "LEMMA_URL"
)

// ExecParam is the query parameter carrying the JSON encoded ExecSpec.
const ExecParam = "exec"

// ExecSpec is the invocation request sent to an instance's URL.
// A zero Timeout selects the instance default.
type ExecSpec struct {
	Command []string `json:"command"`
	Timeout int      `json:"timeout"`
}

// Instance is the handle returned by a successful create.
type Instance struct {
	Name string
	URL  string
	Key  string
}

// Env returns the shell variables describing the instance, in the order
// they are printed by `lemma create`.
func (i Instance) Env() [][2]string {
	return [][2]string{
		{EnvInstance, i.Name},
		{EnvURL, i.URL},
		{EnvAPIKey, i.Key},
	}
}
