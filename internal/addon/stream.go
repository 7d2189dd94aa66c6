package addon

type GetStreamsResponse struct {
	Streams []StreamItem `json:"streams"`
}

type StreamItem struct {
	URL           string               `json:"url,omitempty"`
	ExternalURL   string               `json:"externalUrl,omitempty"`
	Name          string               `json:"name,omitempty"`
	Description   string               `json:"description,omitempty"`
	Title         string               `json:"title,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamBehaviorHints struct {
	BingeGroup  string `json:"bingeGroup,omitempty"`
	NotWebReady bool   `json:"notWebReady,omitempty"`
}
