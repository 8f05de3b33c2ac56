package discourse

import "testing"

func TestClampSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		max  int
		want ImageSize
	}{
		{"no max", 2000, 1500, 0, ImageSize{2000, 1500}},
		{"both under", 400, 300, 690, ImageSize{400, 300}},
		{"only width over", 800, 600, 690, ImageSize{800, 600}},
		{"only height over", 600, 800, 690, ImageSize{600, 800}},
		{"wide", 2000, 1500, 690, ImageSize{690, 517}},
		{"tall", 1500, 2000, 690, ImageSize{517, 690}},
		{"square", 700, 700, 690, ImageSize{690, 690}},
	}
	for _, tt := range tests {
		got := clampSize(tt.w, tt.h, tt.max)
		if got != tt.want {
			t.Errorf("%s: clampSize(%d, %d, %d) = %dx%d, want %dx%d",
				tt.name, tt.w, tt.h, tt.max, got.Width, got.Height, tt.want.Width, tt.want.Height)
		}
	}
}

func TestOverrideLookup(t *testing.T) {
	r := &run{
		p: NewProcessor(Config{}),
		overrides: map[string]ImageSize{
			"https://x.test/exact.png": {Width: 100, Height: 50},
			"/u/partial.png":           {Width: 30, Height: 20},
			"https://x.test/zero.png":  {Width: 0, Height: 0},
		},
		sizeCache: map[string]*ImageSize{},
	}

	if s, ok := r.overrideFor("https://x.test/exact.png"); !ok || s.Width != 100 {
		t.Errorf("exact match failed: %v %v", s, ok)
	}
	// Clients key the table by the URL as submitted, which may be the
	// pre-absolutization fragment of the final src.
	if s, ok := r.overrideFor("https://x.test/u/partial.png"); !ok || s.Width != 30 {
		t.Errorf("substring match failed: %v %v", s, ok)
	}
	// Zero-valued entries are ignored rather than trusted.
	if _, ok := r.overrideFor("https://x.test/zero.png"); ok {
		t.Error("zero-sized override should not match")
	}
	if _, ok := r.overrideFor("https://x.test/absent.png"); ok {
		t.Error("missing URL should not match")
	}
}

func TestRawSizeSchemeGate(t *testing.T) {
	prober := &fakeProber{sizes: map[string]ImageSize{}}
	r := &run{
		p:         NewProcessor(Config{AllowRemoteCrawl: true}, WithSizeProber(prober)),
		sizeCache: map[string]*ImageSize{},
	}

	for _, src := range []string{
		"ftp://x.test/a.png",
		"data:image/png;base64,xyz",
		"javascript:alert(1)",
		"//cdn.test/a.png", // scheme-relative and not a known object store
	} {
		if s := r.rawSize(src); s != nil {
			t.Errorf("%q: got size %v, want none", src, s)
		}
	}
	if len(prober.calls) != 0 {
		t.Errorf("prober reached for rejected URLs: %v", prober.calls)
	}
}

func TestRawSizeCrawlPolicy(t *testing.T) {
	url := "https://elsewhere.test/a.png"
	prober := &fakeProber{sizes: map[string]ImageSize{url: {Width: 10, Height: 10}}}

	// Remote crawl disabled, URL not a known upload: denied.
	r := &run{
		p:         NewProcessor(Config{}, WithSizeProber(prober)),
		sizeCache: map[string]*ImageSize{},
	}
	if s := r.rawSize(url); s != nil {
		t.Errorf("policy-denied probe returned %v", s)
	}
	if prober.callCount(url) != 0 {
		t.Error("prober reached despite crawl policy")
	}

	// Known upload URLs may always be probed.
	objStore := &fakeUploads{objectStore: map[string]bool{url: true}}
	r = &run{
		p:         NewProcessor(Config{}, WithSizeProber(prober), WithUploadStore(objStore)),
		sizeCache: map[string]*ImageSize{},
	}
	if s := r.rawSize(url); s == nil || s.Width != 10 {
		t.Errorf("known upload probe failed: %v", s)
	}
}

func TestRawSizeObjectStoreScheme(t *testing.T) {
	relative := "//bucket.s3.test/site/a.png"
	prober := &fakeProber{sizes: map[string]ImageSize{
		"https://bucket.s3.test/site/a.png": {Width: 33, Height: 44},
	}}
	uploads := &fakeUploads{objectStore: map[string]bool{relative: true}}

	r := &run{
		p:         NewProcessor(Config{}, WithSizeProber(prober), WithUploadStore(uploads)),
		sizeCache: map[string]*ImageSize{},
	}

	s := r.rawSize(relative)
	if s == nil || s.Width != 33 || s.Height != 44 {
		t.Fatalf("scheme-relative object store probe failed: %v", s)
	}
	if prober.callCount("https://bucket.s3.test/site/a.png") != 1 {
		t.Error("probe should use the scheme-qualified URL")
	}
}

func TestRawSizeCachesFailures(t *testing.T) {
	url := "https://x.test/broken.png"
	prober := &fakeProber{sizes: map[string]ImageSize{}} // probe always fails
	r := &run{
		p:         NewProcessor(Config{AllowRemoteCrawl: true}, WithSizeProber(prober)),
		sizeCache: map[string]*ImageSize{},
	}

	r.rawSize(url)
	r.rawSize(url)
	if got := prober.callCount(url); got != 1 {
		t.Errorf("failed probe repeated: %d calls, want 1", got)
	}
}
