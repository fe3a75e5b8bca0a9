package scope

import (
	"reflect"
	"testing"

	"github.com/narratek/storyvars/internal/storage"
)

func populate(t *testing.T, r *Registry) {
	t.Helper()
	g, err := r.Get(Global())
	if err != nil {
		t.Fatal(err)
	}
	g.ParseRegisterCommands(`<registerTable name="quests">[{"name": "title", "type": "string", "required": true}]</registerTable>`)
	g.ParseCommands(`<setVar name="chapter" value="3"/><addTableRow table="quests">title = Grail</addTableRow>`)

	c, err := r.Get(Character("elena"))
	if err != nil {
		t.Fatal(err)
	}
	c.ParseCommands(`<setVar name="trust" value="5"/><setHiddenVar name="secret" hasExpiration="true">a debt unpaid</setHiddenVar>`)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src, _ := newTestRegistry(t)
	populate(t, src)

	snap := src.ExportSnapshot()
	if snap.ID == "" || snap.ExportedAt.IsZero() {
		t.Errorf("snapshot metadata: %+v", snap)
	}

	data, err := snap.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}

	// Import into a registry over a fresh backend.
	dst := NewRegistry(storage.NewMemoryBackend())
	t.Cleanup(dst.Close)
	if err := dst.ImportSnapshot(decoded); err != nil {
		t.Fatal(err)
	}

	g, _ := dst.Get(Global())
	if v, ok := g.GetVar("chapter"); !ok || v.Value != float64(3) {
		t.Errorf("chapter = %#v", v)
	}
	table, ok := g.Store().Table("quests")
	if !ok || len(table.Rows) != 1 || table.Rows[0]["title"] != "Grail" {
		t.Errorf("quests = %#v", table)
	}

	c, _ := dst.Get(Character("elena"))
	if v, ok := c.GetVar("trust"); !ok || v.Value != float64(5) {
		t.Errorf("trust = %#v", v)
	}
	h, ok := c.Store().HiddenVariable("secret")
	if !ok || h.Value != "a debt unpaid" || !h.HasExpiration {
		t.Errorf("secret = %#v", h)
	}

	srcGlobal, _ := src.Get(Global())
	if !reflect.DeepEqual(srcGlobal.Store(), g.Store()) {
		t.Error("imported global store differs from the exported one")
	}
}

// TestSnapshotIsDeepCopy verifies mutations after export do not leak into
// the snapshot.
func TestSnapshotIsDeepCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	populate(t, r)

	snap := r.ExportSnapshot()
	g, _ := r.Get(Global())
	g.ParseCommands(`<setVar name="chapter" value="99"/><removeTableRow table="quests" row="0"/>`)

	v, ok := snap.Global.Variable("chapter")
	if !ok || v.Value != float64(3) {
		t.Errorf("snapshot chapter = %#v", v)
	}
	table, _ := snap.Global.Table("quests")
	if len(table.Rows) != 1 {
		t.Errorf("snapshot rows = %d, want 1", len(table.Rows))
	}
}

// TestSnapshotImportReplaces verifies import is replacement, not merge.
func TestSnapshotImportReplaces(t *testing.T) {
	src, _ := newTestRegistry(t)
	populate(t, src)
	snap := src.ExportSnapshot()

	dst, _ := newTestRegistry(t)
	g, _ := dst.Get(Global())
	g.ParseCommands(`<setVar name="leftover" value="stale"/>`)

	if err := dst.ImportSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	g2, _ := dst.Get(Global())
	if _, ok := g2.GetVar("leftover"); ok {
		t.Error("pre-existing variable survived the import")
	}
	if v, _ := g2.GetVar("chapter"); v == nil || v.Value != float64(3) {
		t.Errorf("chapter = %#v", v)
	}
}
