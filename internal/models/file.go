package models

// PaperFile is an accepted upload held in memory for the life of a workspace.
type PaperFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	// Hash is the hex SHA-256 of Data and keys the analysis cache.
	Hash      string `json:"hash"`
	PageCount int    `json:"pageCount"`
	Data      []byte `json:"-"`
}

// RelatedPaper is a search-grounded recommendation.
type RelatedPaper struct {
	Title  string `json:"title"`
	URI    string `json:"uri"`
	Source string `json:"source"`
}
