package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acksell/registers/representation"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
listen: ":9000"
domain: register.gov.example
pageSize: 25
fetchTimeout: 30s
backend: dynamodb
dynamodb:
  table: registers
  region: eu-west-2
links:
  website: url
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "register.gov.example", cfg.Domain)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 500, cfg.BatchSize, "defaults survive")
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, BackendDynamoDB, cfg.Backend)
	assert.Equal(t, DynamoDB{Table: "registers", Region: "eu-west-2"}, cfg.DynamoDB)
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pageSize: 7\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	assert.Equal(t, resolve(t, filepath.Join(root, FileName)), resolve(t, FindFile(FileName)))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PageSize)
}

// resolve follows symlinks so temp dirs compare equal on every platform.
func resolve(t *testing.T, path string) string {
	t.Helper()
	if path == "" {
		return ""
	}
	p, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	dir, err := filepath.EvalSymlinks(filepath.Dir(p))
	require.NoError(t, err)
	return filepath.Join(dir, filepath.Base(p))
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REGISTERS_LISTEN", ":7000")
	t.Setenv("REGISTERS_PAGE_SIZE", "10")
	t.Setenv("REGISTERS_IN_MEMORY", "true")
	t.Setenv("REGISTERS_BACKEND", "dynamodb")
	t.Setenv("REGISTERS_DYNAMODB_TABLE", "registers")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 10, cfg.PageSize)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, "registers", cfg.DynamoDB.Table)

	t.Setenv("REGISTERS_PAGE_SIZE", "ten")
	_, err = Load("")
	assert.ErrorContains(t, err, "REGISTERS_PAGE_SIZE")
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "pageSise: 10\n",
		"bad yaml":           "pageSize: [\n",
		"unknown backend":    "backend: mongo\n",
		"dynamo needs table": "backend: dynamodb\n",
		"template":           "archiveUrl: https://example.org/archive.zip\n",
		"page size":          "pageSize: 0\n",
		"log level":          "logLevel: loud\n",
		"bad link":           "links:\n  website: mailto\n",
		"unknown field link": "fields: [name]\nlinks:\n  website: url\n",
		"half credentials":   "backend: dynamodb\ndynamodb:\n  table: t\n  accessKeyId: x\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_ArchiveURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://github.com/openregister/country.register/archive/master.zip", cfg.ArchiveURL("country"))
}

func TestConfig_LinkTable(t *testing.T) {
	cfg := Default()
	cfg.Links = map[string]string{"name": "plain", "website": "url"}
	cfg.Fields = []string{"name", "website"}

	links, err := cfg.LinkTable()
	require.NoError(t, err)
	assert.Equal(t, representation.PlainLink(), links.Lookup("name"))
	assert.Equal(t, representation.URLLink(), links.Lookup("website"))
	assert.Equal(t, representation.RegisterLink("country", "addressCountry"), links.Lookup("addressCountry"))
	assert.Equal(t, "openregister.org", links.Domain)
}

func TestConfig_LinkTableValidatesDefaults(t *testing.T) {
	cfg := Default()
	cfg.Domain = ""

	_, err := cfg.LinkTable()
	assert.ErrorContains(t, err, "register link needs a domain")
}

func TestConfig_ParseLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "DEBUG"
	l, err := cfg.ParseLogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}

func TestConfig_AWS(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	ctx := context.Background()

	cfg := Default()
	cfg.Backend = BackendDynamoDB
	cfg.DynamoDB = DynamoDB{
		Table:           "registers",
		Region:          "eu-west-2",
		Endpoint:        "http://localhost:8000",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
	}

	awsCfg, err := cfg.AWS(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-2", awsCfg.Region)
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local", creds.AccessKeyID)

	client, err := cfg.DynamoDBClient(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", aws.ToString(client.Options().BaseEndpoint))

	cfg.DynamoDB.AssumeRoleARN = "arn:aws:iam::123456789012:role/registers"
	awsCfg, err = cfg.AWS(ctx)
	require.NoError(t, err)
	assert.IsType(t, &aws.CredentialsCache{}, awsCfg.Credentials)
}
