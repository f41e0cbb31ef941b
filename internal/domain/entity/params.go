package entity

// TaskParams is the closed set of per-kind payloads.
type TaskParams interface {
	Kind() TaskType
}

type AnalyzeOptions struct {
	AutoFollow bool   `json:"autoFollow,omitempty"`
	MaxFollow  int    `json:"maxFollow,omitempty"`
	Depth      int    `json:"depth,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

type AnalyzeURLParams struct {
	URL     string         `json:"url"`
	Options AnalyzeOptions `json:"options"`
}

type FollowLinksParams struct {
	StartURL string `json:"startUrl"`
	MaxLinks int    `json:"maxLinks,omitempty"`
	Depth    int    `json:"depth,omitempty"`
}

type DownloadFileParams struct {
	URL      string `json:"url"`
	FileName string `json:"fileName,omitempty"`
}

type SearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type Selectors struct {
	Title  bool              `json:"title,omitempty"`
	Text   bool              `json:"text,omitempty"`
	Links  bool              `json:"links,omitempty"`
	Images bool              `json:"images,omitempty"`
	HTML   bool              `json:"html,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`
}

type ExtractDataParams struct {
	URL       string    `json:"url"`
	Selectors Selectors `json:"selectors"`
}

type ChainParams struct {
	Tasks []Task `json:"tasks"`
}

type AutonomousParams struct {
	URL        string   `json:"url,omitempty"`
	Goal       string   `json:"goal,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	SearchText string   `json:"searchText,omitempty"`
	Actions    []Action `json:"actions,omitempty"`
}

func (*AnalyzeURLParams) Kind() TaskType   { return TaskAnalyzeURL }
func (*FollowLinksParams) Kind() TaskType  { return TaskFollowLinks }
func (*DownloadFileParams) Kind() TaskType { return TaskDownloadFile }
func (*SearchParams) Kind() TaskType       { return TaskSearchAnalyze }
func (*ExtractDataParams) Kind() TaskType  { return TaskExtractData }
func (*ChainParams) Kind() TaskType        { return TaskChain }
func (*AutonomousParams) Kind() TaskType   { return TaskAutonomousBrowser }

// NewParams returns an empty payload for the kind, or nil for unknown kinds.
func NewParams(t TaskType) TaskParams {
	switch t {
	case TaskAnalyzeURL:
		return &AnalyzeURLParams{}
	case TaskFollowLinks:
		return &FollowLinksParams{}
	case TaskDownloadFile:
		return &DownloadFileParams{}
	case TaskSearchAnalyze:
		return &SearchParams{}
	case TaskExtractData:
		return &ExtractDataParams{}
	case TaskChain:
		return &ChainParams{}
	case TaskAutonomousBrowser:
		return &AutonomousParams{}
	}
	return nil
}
