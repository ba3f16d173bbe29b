package marker

import (
	"strings"
	"testing"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		lang string
		want Style
	}{
		{"go", Style{Line: "//"}},
		{"python", Style{Line: "#"}},
		{"sql", Style{Line: "--"}},
		{"html", Style{BlockStart: "<!--", BlockEnd: "-->"}},
		{"css", Style{BlockStart: "/*", BlockEnd: "*/"}},
		{"totally-unknown", Style{Line: "//"}},
		{"", Style{Line: "//"}},
	}

	for _, tt := range tests {
		got := StyleFor(tt.lang)
		if got.Line != tt.want.Line || got.BlockStart != tt.want.BlockStart || got.BlockEnd != tt.want.BlockEnd {
			t.Errorf("StyleFor(%q) = %+v, want %+v", tt.lang, got, tt.want)
		}
	}
}

func TestLanguageForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".go", "go"},
		{".py", "python"},
		{".tsx", "typescriptreact"},
		{".html", "html"},
		{".unknown", ""},
	}
	for _, tt := range tests {
		if got := LanguageForExt(tt.ext); got != tt.want {
			t.Errorf("LanguageForExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestStartBlockLineStyle(t *testing.T) {
	block := StartBlock("go", "provmark", "alice")

	want := "// " + Start + "\n// TOOL: provmark\n// ID: alice\n"
	if block != want {
		t.Errorf("StartBlock = %q, want %q", block, want)
	}
}

func TestStartBlockBlockStyle(t *testing.T) {
	block := StartBlock("html", "provmark", "alice")

	if !strings.Contains(block, "<!-- "+Start+" -->") {
		t.Errorf("html start block missing wrapped marker: %q", block)
	}
	if !strings.HasSuffix(block, "\n") {
		t.Error("block should end with newline")
	}
}

func TestEndBlock(t *testing.T) {
	if got := EndBlock("python"); got != "# "+End+"\n" {
		t.Errorf("EndBlock(python) = %q", got)
	}
}

func TestContainsMarker(t *testing.T) {
	if !ContainsMarker("x\n// " + Start + "\ny") {
		t.Error("start marker not detected")
	}
	if !ContainsMarker("# " + End) {
		t.Error("end marker not detected")
	}
	if ContainsMarker("plain code with AI_ASSISTED") {
		t.Error("partial literal should not match")
	}
}

func TestBlocks(t *testing.T) {
	text := strings.Join([]string{
		"code",
		"// " + Start,
		"generated",
		"// " + End,
		"more",
		"// " + Start,
		"generated 2",
		"generated 3",
		"// " + End,
	}, "\n")

	blocks := Blocks(text)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].StartLine != 1 || blocks[0].EndLine != 3 {
		t.Errorf("first block = %+v", blocks[0])
	}
	if blocks[1].StartLine != 5 || blocks[1].EndLine != 8 {
		t.Errorf("second block = %+v", blocks[1])
	}
}

func TestBlocksUnmatchedStart(t *testing.T) {
	text := "// " + Start + "\ncode\n"
	if blocks := Blocks(text); len(blocks) != 0 {
		t.Errorf("unmatched start should yield no blocks, got %d", len(blocks))
	}
}

func TestBlockContains(t *testing.T) {
	b := Block{StartLine: 2, EndLine: 8}

	if !b.Contains(3, 8) {
		t.Error("range inside block should be contained")
	}
	if b.Contains(2, 5) {
		t.Error("range starting on the marker line is not inside")
	}
	if b.Contains(3, 9) {
		t.Error("range past the end marker is not inside")
	}
}

func TestLastEndLine(t *testing.T) {
	text := "// " + End + "\nx\n// " + End + "\ny\n"
	if got := LastEndLine(text); got != 2 {
		t.Errorf("LastEndLine = %d, want 2", got)
	}
	if got := LastEndLine("no markers"); got != -1 {
		t.Errorf("LastEndLine without markers = %d, want -1", got)
	}
}
