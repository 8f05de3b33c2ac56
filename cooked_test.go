package discourse

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestProcessEmptyInput(t *testing.T) {
	p := NewProcessor(Config{BaseURL: "https://x.test"})

	for _, cooked := range []string{"", "   ", "\n\t"} {
		res := p.Process(Post{ID: 1, Cooked: cooked}, ProcessOptions{})
		if res.Dirty {
			t.Errorf("empty input %q: dirty should be false", cooked)
		}
		if res.HTML != cooked {
			t.Errorf("empty input %q: html = %q, want input unchanged", cooked, res.HTML)
		}
	}
}

// The end-to-end shape: a root-relative image gets absolutized, measured,
// clamped and wrapped in lightbox markup.
func TestProcessEndToEnd(t *testing.T) {
	prober := &fakeProber{sizes: map[string]ImageSize{
		"https://x.test/u/1.png": {Width: 2000, Height: 1500},
	}}
	p := NewProcessor(Config{
		BaseURL:                "https://x.test",
		AutoLinkThresholdWidth: 100,
		MaxRenderDimension:     690,
		AllowRemoteCrawl:       true,
	}, WithSizeProber(prober))

	res := p.Process(Post{ID: 1, Cooked: `<img src="/u/1.png">`}, ProcessOptions{})

	if !res.Dirty {
		t.Error("dirty should be true")
	}
	for _, want := range []string{
		`src="https://x.test/u/1.png"`,
		`width="690"`,
		`height="517"`,
		`class="lightbox-wrapper"`,
		`<a class="lightbox" href="https://x.test/u/1.png">`,
		`<span class="filename">1.png</span>`,
		`<span class="informations">2000x1500</span>`,
		`<span class="expand">`,
	} {
		if !strings.Contains(res.HTML, want) {
			t.Errorf("output missing %q:\n%s", want, res.HTML)
		}
	}
	if got := prober.callCount("https://x.test/u/1.png"); got != 1 {
		t.Errorf("probe count = %d, want 1", got)
	}
}

func TestProcessIdempotent(t *testing.T) {
	prober := &fakeProber{sizes: map[string]ImageSize{
		"https://x.test/u/1.png": {Width: 2000, Height: 1500},
	}}
	p := NewProcessor(Config{
		BaseURL:            "https://x.test",
		MaxRenderDimension: 690,
		AllowRemoteCrawl:   true,
	}, WithSizeProber(prober))

	first := p.Process(Post{ID: 1, Cooked: `<p><img src="/u/1.png"></p>`}, ProcessOptions{})
	if !first.Dirty {
		t.Fatal("first run should be dirty")
	}

	second := p.Process(Post{ID: 1, Cooked: first.HTML}, ProcessOptions{})
	if second.Dirty {
		t.Errorf("second run should be clean, got dirty with:\n%s", second.HTML)
	}
	if second.HTML != first.HTML {
		t.Errorf("second run changed output:\nfirst:  %s\nsecond: %s", first.HTML, second.HTML)
	}
}

// Images that already carry both dimension attributes are never measured,
// and with remote crawling disabled the prober is never reached at all.
func TestProcessPresizedImageUntouched(t *testing.T) {
	prober := &fakeProber{sizes: map[string]ImageSize{}}
	p := NewProcessor(Config{
		BaseURL:                "https://x.test",
		AutoLinkThresholdWidth: 100,
	}, WithSizeProber(prober))

	cooked := `<p><img src="https://x.test/a.png" width="800" height="600"></p>`
	res := p.Process(Post{ID: 1, Cooked: cooked}, ProcessOptions{})

	if res.Dirty {
		t.Error("nothing should have changed")
	}
	if !strings.Contains(res.HTML, `width="800"`) || !strings.Contains(res.HTML, `height="600"`) {
		t.Errorf("dimension attributes changed:\n%s", res.HTML)
	}
	if len(prober.calls) != 0 {
		t.Errorf("prober should never be called, got %v", prober.calls)
	}
}

func TestProcessSharedURLProbedOnce(t *testing.T) {
	url := "https://x.test/shared.png"
	prober := &fakeProber{sizes: map[string]ImageSize{url: {Width: 400, Height: 300}}}
	p := NewProcessor(Config{
		AllowRemoteCrawl:       true,
		AutoLinkThresholdWidth: 1000, // keep the lightbox out of the way
	}, WithSizeProber(prober))

	cooked := `<p><img src="` + url + `"><img src="` + url + `"></p>`
	res := p.Process(Post{ID: 1, Cooked: cooked}, ProcessOptions{})

	if got := prober.callCount(url); got != 1 {
		t.Errorf("probe count = %d, want 1", got)
	}
	if strings.Count(res.HTML, `width="400" height="300"`) != 2 {
		t.Errorf("both images should carry the cached size:\n%s", res.HTML)
	}
}

func TestProcessOneboxPass(t *testing.T) {
	var seen string
	p := NewProcessor(Config{}, WithOnebox(func(url string, _ *html.Node) string {
		seen = url
		return `<aside class="onebox">preview</aside>`
	}))

	cooked := `<p><a href="https://ex.test/article">https://ex.test/article</a></p>`
	res := p.Process(Post{ID: 1, Cooked: cooked}, ProcessOptions{})

	if seen != "https://ex.test/article" {
		t.Errorf("resolver saw %q", seen)
	}
	if !res.Dirty {
		t.Error("onebox expansion should mark the run dirty")
	}
	if !strings.Contains(res.HTML, `<aside class="onebox">preview</aside>`) {
		t.Errorf("preview not spliced in:\n%s", res.HTML)
	}
	if strings.Contains(res.HTML, "<a ") {
		t.Errorf("bare link should be gone:\n%s", res.HTML)
	}
}

func TestProcessUnparseableReturnsInput(t *testing.T) {
	// x/net/html accepts almost anything, so this mostly pins down that the
	// facade never errors out on odd input.
	p := NewProcessor(Config{})
	cooked := `<p>just text`
	res := p.Process(Post{ID: 1, Cooked: cooked}, ProcessOptions{})
	if !strings.Contains(res.HTML, "just text") {
		t.Errorf("content lost:\n%s", res.HTML)
	}
}
