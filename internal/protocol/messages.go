package protocol

type SubscribeMsg struct {
	Type     string `json:"type"`
	Version  string `json:"version"`
	Observer string `json:"observer,omitempty"`
}

type WelcomeMsg struct {
	Type    string        `json:"type"`
	Version string        `json:"version"`
	Tick    int64         `json:"tick"`
	Digests CatalogDigest `json:"digests"`
}

// CatalogDigest pins the content an observer is watching. A replay
// against different catalogs is detectable by comparing these.
type CatalogDigest struct {
	Items    string `json:"items"`
	Stations string `json:"stations"`
	Tasks    string `json:"tasks"`
	Layout   string `json:"layout"`
}

type StateMsg struct {
	Type      string          `json:"type"`
	Tick      int64           `json:"tick"`
	Tasks     TaskCounts      `json:"tasks"`
	Completed int64           `json:"completed"`
	Overflow  int64           `json:"overflow"`
	Agents    []AgentState    `json:"agents"`
	Stations  []StationState  `json:"stations"`
	Fields    FlowFieldStats  `json:"fields"`
	Digest    string          `json:"digest"`
}

type TaskCounts struct {
	Pending   int `json:"pending"`
	Ready     int `json:"ready"`
	Claimed   int `json:"claimed"`
	Executing int `json:"executing"`
}

type AgentState struct {
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Task    string `json:"task,omitempty"`
	Holding int    `json:"holding"`
}

type StationState struct {
	ID  string `json:"id"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
	In  int    `json:"in"`
	Out int    `json:"out"`
}

type FlowFieldStats struct {
	Cached    int   `json:"cached"`
	Builds    int64 `json:"builds"`
	Evictions int64 `json:"evictions"`
}

type ErrorMsg struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
