package models

// FigureType discriminates figure records from table records.
type FigureType string

const (
	TypeFigure FigureType = "figure"
	TypeTable  FigureType = "table"
)

// Subfigure is one panel of a parent figure. ID is a single lowercase
// letter assigned in document order.
type Subfigure struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// FigureRecord is the canonical unit of extraction. ID follows the storage
// grammar [appendix_](fig|tab)<n>; subfigure image files use <id>_<letter>.
type FigureRecord struct {
	ID            string      `json:"id"`
	Caption       string      `json:"caption,omitempty"`
	Type          FigureType  `json:"type"`
	HasSubfigures bool        `json:"has_subfigures,omitempty"`
	Subfigures    []Subfigure `json:"subfigures,omitempty"`
	Content       string      `json:"content,omitempty"` // markdown table body, tables only
	LocalPath     string      `json:"-"`
	RemotePath    string      `json:"remote_path,omitempty"`
}

// Registry maps canonical id to record for a single paper.
type Registry map[string]*FigureRecord

// ResolvedFigure is the resolver's output shape, consumed by the REST
// surface and by markdown placeholder substitution.
type ResolvedFigure struct {
	DisplayID     string      `json:"display_id"`
	URL           string      `json:"url,omitempty"`
	Caption       string      `json:"caption"`
	ParentCaption string      `json:"parent_caption,omitempty"`
	Type          FigureType  `json:"type,omitempty"`
	Subfigures    []Subfigure `json:"subfigures,omitempty"`
}

// PaperSource identifies where a paper's renderings live. HTMLURL is the
// ar5iv rendering; PDFPath is a local fallback copy, empty when unavailable.
type PaperSource struct {
	PaperID string `json:"paper_id"`
	HTMLURL string `json:"html_url,omitempty"`
	PDFPath string `json:"pdf_path,omitempty"`
}

// Summary is the summarizer collaborator's output: markdown text containing
// <FIGURE_ID>N</FIGURE_ID> placeholder tokens, the display ids referenced in
// order, and the display id chosen for the post thumbnail.
type Summary struct {
	Markdown     string   `json:"markdown"`
	FigureRefs   []string `json:"figure_refs,omitempty"`
	ThumbnailRef string   `json:"thumbnail_ref,omitempty"`
}
