package downloader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/downloader"
	"github.com/kubev2v/guest-extension-agent/internal/models"
)

func TestDownloader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Downloader Suite")
}

// writeZip builds a zip file at path containing name -> contents. When
// name is attempted to escape destDir on extraction, this is how a
// malicious package would be shaped.
func writeZip(t GinkgoTInterface, path string, entries map[string]string) {
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	w := zip.NewWriter(f)
	for name, contents := range entries {
		ew, err := w.Create(name)
		Expect(err).NotTo(HaveOccurred())
		_, err = ew.Write([]byte(contents))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(w.Close()).To(Succeed())
}

// scriptedFetcher serves a fixed zip for every download, optionally
// failing the first N attempts to exercise the retry loop.
type scriptedFetcher struct {
	zipPath    string
	failTimes  int
	attempts   int
	requestedC []string
}

func (s *scriptedFetcher) DownloadExtHandlerPkg(ctx context.Context, uri, destFile string) error {
	s.attempts++
	s.requestedC = append(s.requestedC, uri)
	if s.attempts <= s.failTimes {
		return errAlwaysFails
	}
	data, err := os.ReadFile(s.zipPath)
	if err != nil {
		return err
	}
	return os.WriteFile(destFile, data, 0o600)
}

var errAlwaysFails = &fetchError{"mirror unreachable"}

type fetchError struct{ msg string }

func (e *fetchError) Error() string { return e.msg }

var _ = Describe("Downloader.Fetch", func() {
	var libRoot, baseDir string

	BeforeEach(func() {
		libRoot = GinkgoT().TempDir()
		baseDir = filepath.Join(libRoot, "Foo-1.0")
	})

	It("extracts a well-formed package into baseDir", func() {
		zipPath := filepath.Join(libRoot, "src.zip")
		writeZip(GinkgoT(), zipPath, map[string]string{"HandlerManifest.json": "{}"})

		fetcher := &scriptedFetcher{zipPath: zipPath}
		dl := downloader.New(libRoot, fetcher)
		pkg := models.Package{Version: "1.0", URIs: []string{"http://mirror-a/Foo-1.0.zip", "http://mirror-b/Foo-1.0.zip"}}

		Expect(dl.Fetch(context.Background(), "Foo", pkg, baseDir)).To(Succeed())

		data, err := os.ReadFile(filepath.Join(baseDir, "HandlerManifest.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("{}"))
	})

	It("rejects a package whose entry names escape the destination directory (zip-slip)", func() {
		zipPath := filepath.Join(libRoot, "evil.zip")
		writeZip(GinkgoT(), zipPath, map[string]string{"../../etc/passwd": "pwned"})

		fetcher := &scriptedFetcher{zipPath: zipPath}
		dl := downloader.New(libRoot, fetcher)
		pkg := models.Package{Version: "1.0", URIs: []string{"http://mirror-a/evil.zip"}}

		err := dl.Fetch(context.Background(), "Foo", pkg, baseDir)
		Expect(err).To(HaveOccurred())

		_, statErr := os.Stat(filepath.Join(libRoot, "..", "etc", "passwd"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("falls through to the next mirror URI within a round after a download failure", func() {
		zipPath := filepath.Join(libRoot, "src.zip")
		writeZip(GinkgoT(), zipPath, map[string]string{"HandlerManifest.json": "{}"})

		fetcher := &scriptedFetcher{zipPath: zipPath, failTimes: 1}
		dl := downloader.New(libRoot, fetcher)
		pkg := models.Package{Version: "1.0", URIs: []string{"http://mirror-a/Foo-1.0.zip", "http://mirror-b/Foo-1.0.zip"}}

		Expect(dl.Fetch(context.Background(), "Foo", pkg, baseDir)).To(Succeed())
		Expect(fetcher.attempts).To(Equal(2))
	})

	It("fails with ExtensionDownloadError when the package has no URIs", func() {
		dl := downloader.New(libRoot, &scriptedFetcher{})
		pkg := models.Package{Version: "1.0"}

		err := dl.Fetch(context.Background(), "Foo", pkg, baseDir)
		Expect(err).To(HaveOccurred())
		Expect(bytes.Contains([]byte(err.Error()), []byte("Foo"))).To(BeTrue())
	})
})
