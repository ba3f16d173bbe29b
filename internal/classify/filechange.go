package classify

import (
	"os"
	"strings"

	"provmark/internal/event"
	"provmark/internal/marker"
)

// minFileChars is the trimmed length under which a watcher-observed file
// is too short to judge.
const minFileChars = 50

// ProcessFileChange handles the secondary trigger path: a file changed
// on disk without producing buffer-visible change events (an external
// tool rewrote it). Content up to the last existing end marker is
// treated as already handled; anything after it is the candidate. A file
// with no markers is considered wholesale.
func (c *Classifier) ProcessFileChange(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		return
	}

	key := event.FileKey(path)
	if c.suppress != nil && c.suppress.Suppressed(key) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.log.Warn("read changed file", "path", path, "error", err)
		return
	}
	text := string(data)

	candidate := text
	if last := marker.LastEndLine(text); last >= 0 {
		lines := strings.Split(text, "\n")
		candidate = strings.Join(lines[last+1:], "\n")
	}

	if len(strings.TrimSpace(candidate)) < minFileChars {
		return
	}

	c.emitLocked(event.Result{
		Classification: event.ClassAILikely,
		URI:            path,
		AnchorLine:     0,
		Text:           candidate,
		ChangeCount:    1,
		Reason:         "file rewritten externally with unmarked content",
		Timestamp:      c.clock.Now(),
	})
}
