package indexer

// Candidate is a single torrent search result considered for an acquisition
// request. Candidates are ephemeral; they exist only between a search cycle
// and a selection decision, and the selected subset may be surfaced over the
// API for manual choice.
type Candidate struct {
	Title    string `json:"title"`
	SizeB    int64  `json:"size_bytes"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Quality  string `json:"quality,omitempty"`
	Format   string `json:"format,omitempty"`
	Indexer  string `json:"indexer"`
	URI      string `json:"uri"`
}

// SizeGB converts the candidate payload size to gigabytes.
func (c Candidate) SizeGB() float64 {
	return float64(c.SizeB) / (1024 * 1024 * 1024)
}
