package models

// CrawlResult is one successfully fetched, same-domain HTML page.
// URL is the final URL after redirects.
type CrawlResult struct {
	URL  string
	HTML string
}

// Page is the readable content extracted from one CrawlResult.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Metadata ties a chunk back to the page it came from.
type Metadata struct {
	Source string
	Title  string
}

// Chunk is the retrieval unit stored in the vector index.
type Chunk struct {
	Content  string
	Metadata Metadata
}

// Message is one turn of a conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Answer is the result of one question, with the chunks it was grounded on.
type Answer struct {
	Answer  string
	Sources []Chunk
}
