package session

// Session is the immutable run context threaded through delivery and
// republish calls. It replaces any process-global state: every operation
// derives one from the resolved pipeline version and hands it down
// explicitly.
type Session struct {
	Project string
	Asset   string
	Task    string
	Workdir string
	App     string
	User    string
}

// Legacy environment keys consumed by the downstream publish worker. The
// names are a compatibility contract and must not change.
const (
	KeyProject = "AVALON_PROJECT"
	KeyAsset   = "AVALON_ASSET"
	KeyTask    = "AVALON_TASK"
	KeyWorkdir = "AVALON_WORKDIR"
	KeyApp     = "AVALON_APP"
)

// Snapshot serializes the session into the key/value form embedded in the
// publish job manifest.
func (s Session) Snapshot() map[string]string {
	return map[string]string{
		KeyProject: s.Project,
		KeyAsset:   s.Asset,
		KeyTask:    s.Task,
		KeyWorkdir: s.Workdir,
		KeyApp:     s.App,
	}
}
