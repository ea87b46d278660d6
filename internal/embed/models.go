package embed

// LocalConfig configures LocalEmbedder.
type LocalConfig struct {
	// Model is a fastembed model name or one of its Hugging Face aliases.
	Model string

	// CacheDir holds downloaded model files.
	CacheDir  string
	MaxLength int
	BatchSize int
}

type localModel struct {
	name string
	dims int
}

// localModels maps accepted model names to the fastembed model name and
// vector size.
var localModels = map[string]localModel{
	"BAAI/bge-small-en-v1.5":                 {"fast-bge-small-en-v1.5", 384},
	"BAAI/bge-small-en":                      {"fast-bge-small-en", 384},
	"BAAI/bge-base-en-v1.5":                  {"fast-bge-base-en-v1.5", 768},
	"BAAI/bge-base-en":                       {"fast-bge-base-en", 768},
	"BAAI/bge-small-zh-v1.5":                 {"fast-bge-small-zh-v1.5", 512},
	"sentence-transformers/all-MiniLM-L6-v2": {"fast-all-MiniLM-L6-v2", 384},
	"fast-bge-small-en-v1.5":                 {"fast-bge-small-en-v1.5", 384},
	"fast-bge-small-en":                      {"fast-bge-small-en", 384},
	"fast-bge-base-en-v1.5":                  {"fast-bge-base-en-v1.5", 768},
	"fast-bge-base-en":                       {"fast-bge-base-en", 768},
	"fast-bge-small-zh-v1.5":                 {"fast-bge-small-zh-v1.5", 512},
	"fast-all-MiniLM-L6-v2":                  {"fast-all-MiniLM-L6-v2", 384},
}

// LocalModelDimensions reports the vector size of a supported local model.
func LocalModelDimensions(model string) (int, bool) {
	m, ok := localModels[model]
	return m.dims, ok
}
