package vertex

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/provider"
)

// Defaults match the deployment the service was first built for.
const (
	DefaultProject         = "serhrag"
	DefaultLocation        = "europe-west4"
	DefaultModel           = "gemini-2.0-flash-001"
	DefaultCredentialsFile = "./serhrag-0b2f568e9c6f.json"
	DefaultContextWindow   = 1 << 20
	DefaultInitTimeout     = 30 * time.Second
	DefaultTopK            = 3
	DefaultVectorDistance  = 0.5
)

// Config holds the configuration for the Vertex AI provider.
type Config struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	Model    string `yaml:"model"`
	Role     string `yaml:"role"`

	// Corpus is a full RAG corpus resource name. When empty the corpus is
	// discovered by CorpusDisplayName, or else the first corpus with files.
	Corpus            string `yaml:"corpus"`
	CorpusDisplayName string `yaml:"corpus_display_name"`

	// CredentialsFile is tried after the GOOGLE_APPLICATION_CREDENTIALS*
	// variables and before application default credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// Endpoint overrides the regional REST base used for corpus discovery.
	Endpoint string `yaml:"endpoint"`

	ContextWindow int             `yaml:"context_window"`
	InitTimeout   time.Duration   `yaml:"init_timeout"`
	Retrieval     RetrievalConfig `yaml:"retrieval"`
}

// RetrievalConfig tunes the RAG tool attached to every request.
type RetrievalConfig struct {
	Disabled                bool    `yaml:"disabled"`
	TopK                    int     `yaml:"top_k"`
	VectorDistanceThreshold float64 `yaml:"vector_distance_threshold"`
}

func (c *Config) defaults() {
	if c.Project == "" {
		c.Project = DefaultProject
	}
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = DefaultCredentialsFile
	}
	if c.Endpoint == "" {
		c.Endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", c.Location)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.ContextWindow == 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = DefaultTopK
	}
	if c.Retrieval.VectorDistanceThreshold == 0 {
		c.Retrieval.VectorDistanceThreshold = DefaultVectorDistance
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Project == "" {
		errs = append(errs, errors.New("provider.vertex: project is required"))
	}
	if c.Location == "" {
		errs = append(errs, errors.New("provider.vertex: location is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("provider.vertex: model is required"))
	}
	if _, ok := provider.ParseRole(c.Role); !ok {
		errs = append(errs, fmt.Errorf("provider.vertex: unknown role %q", c.Role))
	}
	if c.Corpus != "" && !strings.Contains(c.Corpus, "/ragCorpora/") {
		errs = append(errs, fmt.Errorf("provider.vertex: corpus %q is not a ragCorpora resource name", c.Corpus))
	}
	if c.ContextWindow < 0 {
		errs = append(errs, errors.New("provider.vertex: context_window must not be negative"))
	}
	if c.Retrieval.TopK < 0 {
		errs = append(errs, errors.New("provider.vertex: retrieval.top_k must not be negative"))
	}
	if d := c.Retrieval.VectorDistanceThreshold; d < 0 || d > 2 {
		errs = append(errs, fmt.Errorf("provider.vertex: retrieval.vector_distance_threshold %v out of range [0, 2]", d))
	}
	return errors.Join(errs...)
}

// parent returns the resource prefix corpora live under.
func (c *Config) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.Project, c.Location)
}
