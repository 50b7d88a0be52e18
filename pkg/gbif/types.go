package gbif

// NameUsage GBIF 物种条目
type NameUsage struct {
	Key             int64  `json:"key"`
	ScientificName  string `json:"scientificName"`
	CanonicalName   string `json:"canonicalName"`
	VernacularName  string `json:"vernacularName,omitempty"`
	Rank            string `json:"rank"`
	TaxonomicStatus string `json:"taxonomicStatus,omitempty"`
	Kingdom         string `json:"kingdom,omitempty"`
	Phylum          string `json:"phylum,omitempty"`
	Class           string `json:"class,omitempty"`
	Order           string `json:"order,omitempty"`
	Family          string `json:"family,omitempty"`
	Genus           string `json:"genus,omitempty"`
	Species         string `json:"species,omitempty"`
}

// MatchResult /species/match 返回
type MatchResult struct {
	UsageKey       int64  `json:"usageKey"`
	ScientificName string `json:"scientificName"`
	CanonicalName  string `json:"canonicalName"`
	Rank           string `json:"rank"`
	Status         string `json:"status"`
	Confidence     int    `json:"confidence"`
	MatchType      string `json:"matchType"`
	Kingdom        string `json:"kingdom,omitempty"`
	Phylum         string `json:"phylum,omitempty"`
	Class          string `json:"class,omitempty"`
	Order          string `json:"order,omitempty"`
	Family         string `json:"family,omitempty"`
	Genus          string `json:"genus,omitempty"`
	Species        string `json:"species,omitempty"`
}

// Matched 是否匹配到条目
func (m *MatchResult) Matched() bool {
	return m != nil && m.UsageKey != 0 && m.MatchType != "NONE"
}

// SearchResult /species/search 返回
type SearchResult struct {
	Offset       int         `json:"offset"`
	Limit        int         `json:"limit"`
	EndOfRecords bool        `json:"endOfRecords"`
	Count        int64       `json:"count"`
	Results      []NameUsage `json:"results"`
}
