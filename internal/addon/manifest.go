package addon

// ContentType refers to https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/content.types.md
type ContentType string

const (
	ContentTypeSeries ContentType = "series"
)

// Resource refers to https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/manifest.md#filtering-properties
type Resource string

const (
	ResourceStream Resource = "stream"
)

type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	ResourceItems []ResourceItem `json:"resources,omitempty"`

	Types    []ContentType `json:"types"`
	Catalogs []CatalogItem `json:"catalogs"`

	IDPrefixes    []string       `json:"idPrefixes,omitempty"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

type ResourceItem struct {
	Name  Resource      `json:"name"`
	Types []ContentType `json:"types"`

	IDPrefixes []string `json:"idPrefixes,omitempty"`
}

type BehaviorHints struct {
	Configurable bool `json:"configurable,omitempty"`
}

// CatalogItem represents a catalog. The addon publishes none.
type CatalogItem struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"name"`
}
