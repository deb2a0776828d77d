package indexcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaabir/tim-ai/pkg/retrieval"
)

var _ = Describe("Index Command", func() {
	var (
		ctx       context.Context
		tmpDir    string
		indexPath string
		embedSrv  *httptest.Server
		embedded  []string
	)

	// Deterministic 3-dim embedding: vector depends on how many texts
	// came before, so distances differ per passage.
	startEmbedServer := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				UserInput string `json:"user_input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			embedded = append(embedded, req.UserInput)

			v := []float32{float32(len(embedded)), 1, 0}
			Expect(json.NewEncoder(w).Encode(map[string]any{"output": v})).To(Succeed())
		}))
	}

	writeFile := func(name, body string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedded = nil

		var err error
		tmpDir, err = os.MkdirTemp("", "tim-index-test-*")
		Expect(err).NotTo(HaveOccurred())
		indexPath = filepath.Join(tmpDir, "index.db")

		embedSrv = startEmbedServer()
	})

	AfterEach(func() {
		embedSrv.Close()
		os.RemoveAll(tmpDir)
	})

	writeConfig := func() string {
		return writeFile("tim.toml", fmt.Sprintf(`
[server]
secret_key = "s3cret"

[llm]
api_key = "gsk_test"

[retrieval]
index_path = %q
embed_url = %q
dimensions = 3
`, indexPath, embedSrv.URL))
	}

	It("indexes blank-line separated passages", func() {
		configPath := writeConfig()
		passagesPath := writeFile("portfolio.txt", `I have 5 years of backend experience.

I built a streaming chat server in Go.


I contribute to open source vector search tooling.
`)

		var out bytes.Buffer
		cmd := NewIndexCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--config", configPath, passagesPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		Expect(embedded).To(HaveLen(3))
		Expect(out.String()).To(ContainSubstring("Indexed 3 passages"))

		// The passages must come back out of the index.
		embedder := retrieval.NewSpaceEmbedder(embedSrv.URL, "s3cret")
		idx, err := retrieval.NewVecIndex(indexPath, embedder, 3)
		Expect(err).NotTo(HaveOccurred())
		defer idx.Close()

		passages, err := idx.Search(ctx, "experience", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(passages).To(ConsistOf(
			"I have 5 years of backend experience.",
			"I built a streaming chat server in Go.",
			"I contribute to open source vector search tooling.",
		))
	})

	It("reports an empty passages file", func() {
		configPath := writeConfig()
		passagesPath := writeFile("empty.txt", "\n\n  \n\n")

		var out bytes.Buffer
		cmd := NewIndexCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--config", configPath, passagesPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		Expect(embedded).To(BeEmpty())
		Expect(out.String()).To(ContainSubstring("No passages to index."))
	})

	It("rejects a config without a local index", func() {
		configPath := writeFile("tim.toml", fmt.Sprintf(`
[server]
secret_key = "s3cret"

[llm]
api_key = "gsk_test"

[retrieval]
search_url = %q
`, embedSrv.URL))
		passagesPath := writeFile("portfolio.txt", "some passage")

		cmd := NewIndexCmd()
		cmd.SetArgs([]string{"--config", configPath, passagesPath})
		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError(ContainSubstring("index_path")))
	})

	Describe("splitPassages", func() {
		It("splits on blank lines and trims whitespace", func() {
			Expect(splitPassages("a\n\nb\r\n\r\nc\n")).To(Equal([]string{"a", "b", "c"}))
		})

		It("returns nil for whitespace-only input", func() {
			Expect(splitPassages(" \n\n\t\n")).To(BeNil())
		})
	})
})
