package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/resman/internal/resman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/encoding/traditionalchinese"
)

func writeFile(t *testing.T, root, rel string, body []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, body, 0o644))
}

func TestBlobFactory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ui/logo.png", []byte("\x89PNG fake"))

	r, err := BlobFactory(root)("ui/logo.png")
	require.NoError(t, err)
	b := r.(*Blob)
	assert.Equal(t, "ui/logo.png", b.Path)
	assert.Equal(t, []byte("\x89PNG fake"), b.Data)
	assert.Equal(t, blake2b.Sum256([]byte("\x89PNG fake")), b.Sum)
	assert.Len(t, b.Digest(), 64)
	assert.Equal(t, 9, b.Size())

	_, err = BlobFactory(root)("ui/missing.png")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveRejectsEscapes(t *testing.T) {
	for _, p := range []string{"../secret", "/etc/passwd", "a/../../b", ""} {
		_, err := Resolve("root", p)
		assert.ErrorIs(t, err, ErrOutsideRoot, p)
	}
	got, err := Resolve("root", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("root", "a", "b.txt"), got)
}

func TestTextFactoryMS950(t *testing.T) {
	root := t.TempDir()
	big5, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte("歡迎\r\n天堂\r\n"))
	require.NoError(t, err)
	writeFile(t, root, "msg/welcome.txt", big5)
	writeFile(t, root, "msg/ascii.txt", []byte("hello\n"))

	f, err := TextFactory(root, "MS950")
	require.NoError(t, err)

	r, err := f("msg/welcome.txt")
	require.NoError(t, err)
	text := r.(*Text)
	assert.Equal(t, "ms950", text.Charset)
	assert.Equal(t, []string{"歡迎", "天堂"}, text.Lines())

	r, err = f("msg/ascii.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", r.(*Text).Body)
}

func TestTextFactoryCharsets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "latin.txt", []byte{'c', 'a', 'f', 0xe9})

	f, err := TextFactory(root, "iso-8859-1")
	require.NoError(t, err)
	r, err := f("latin.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", r.(*Text).Body)

	f, err = TextFactory(root, "")
	require.NoError(t, err)
	r, err = f("latin.txt")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", r.(*Text).Charset)

	_, err = TextFactory(root, "klingon")
	assert.Error(t, err)
}

func TestTextLinesEmpty(t *testing.T) {
	assert.Nil(t, (&Text{}).Lines())
}

type spawn struct {
	NpcID int32  `yaml:"npc_id" toml:"npc_id"`
	Count int    `yaml:"count" toml:"count"`
	Note  string `yaml:"note" toml:"note"`
}

type spawnList struct {
	Spawns []spawn `yaml:"spawns" toml:"spawns"`
}

func TestYAMLFactory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "spawn.yaml", []byte(`
spawns:
  - npc_id: 45001
    count: 3
    note: goblin
  - npc_id: 45002
    count: 1
`))
	list, err := YAML[spawnList](root)("spawn.yaml")
	require.NoError(t, err)
	require.Len(t, list.Spawns, 2)
	assert.Equal(t, spawn{NpcID: 45001, Count: 3, Note: "goblin"}, list.Spawns[0])

	writeFile(t, root, "bad.yaml", []byte("spawns: [\n"))
	_, err = YAML[spawnList](root)("bad.yaml")
	assert.ErrorContains(t, err, "parse bad.yaml")
}

func TestTOMLFactory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "spawn.toml", []byte(`
[[spawns]]
npc_id = 45001
count = 3
`))
	list, err := TOML[spawnList](root)("spawn.toml")
	require.NoError(t, err)
	assert.Equal(t, []spawn{{NpcID: 45001, Count: 3}}, list.Spawns)

	writeFile(t, root, "extra.toml", []byte("[[spawns]]\nnpc_id = 1\nspeed = 9\n"))
	_, err = TOML[spawnList](root)("extra.toml")
	assert.ErrorContains(t, err, "unknown keys")
}

func TestDocumentFactory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rates.yml", []byte("exp: 2\ndrop: 1.5\n"))
	writeFile(t, root, "server.toml", []byte("name = \"whale\"\nid = 1\n"))
	writeFile(t, root, "notes.txt", []byte("x"))

	f := DocumentFactory(root)
	r, err := f("rates.yml")
	require.NoError(t, err)
	doc := r.(*Document)
	assert.Equal(t, "yaml", doc.Format)
	assert.Equal(t, []string{"drop", "exp"}, doc.Keys())

	r, err = f("server.toml")
	require.NoError(t, err)
	assert.Equal(t, "toml", r.(*Document).Format)
	assert.Equal(t, "whale", r.(*Document).Fields["name"])

	_, err = f("notes.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFactoriesWithManager(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "spawn.yaml", []byte("spawns:\n  - npc_id: 7\n"))
	writeFile(t, root, "logo.png", []byte("png"))

	m := resman.New(root)
	defer m.Close()
	require.NoError(t, m.RegisterFactory("blob", BlobFactory(m.BaseDir())))
	require.NoError(t, resman.Register(m, YAML[spawnList](m.BaseDir())))

	list, err := resman.Load[*spawnList](m, "spawn.yaml")
	require.NoError(t, err)
	again, err := resman.Load[*spawnList](m, "spawn.yaml")
	require.NoError(t, err)
	assert.Same(t, list, again)

	r, err := m.Load("blob", "logo.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(r.(*Blob).Data))

	_, err = m.Load("blob", "nope.png")
	assert.ErrorIs(t, err, resman.ErrFactory)
	assert.False(t, m.Has("blob", "nope.png"))
}
