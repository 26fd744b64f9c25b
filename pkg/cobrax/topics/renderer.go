package topics

// Renderer formats topic content for the terminal
type Renderer interface {
	// Render returns content formatted for display; ext is the topic's file
	// extension including the dot
	Render(content string, ext string) string
}

// PlainRenderer returns content unchanged
type PlainRenderer struct{}

// Render implements Renderer
func (PlainRenderer) Render(content string, _ string) string {
	return content
}
