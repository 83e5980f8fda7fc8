package progression

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/udisondev/spelllearn/internal/formid"
)

// FileVersion is the on-disk progress file version. Files with a higher
// version are refused; the in-memory state stays at defaults.
const FileVersion = 2

// Co-save record tags: progress state and learning targets.
const (
	RecordProgress = "SLPR"
	RecordTargets  = "SLTR"
	recordVersion  = 2
)

type progressDoc struct {
	Version int                    `json:"version"`
	Spells  map[string]spellEntry  `json:"spells"`
	Targets map[string]string      `json:"targets"`
	Prereqs map[string]prereqEntry `json:"prereqs,omitempty"`
}

type spellEntry struct {
	Progress   float64            `json:"progress"`
	RequiredXP float64            `json:"required_xp"`
	Unlocked   bool               `json:"unlocked"`
	Early      bool               `json:"early,omitempty"`
	Sources    sourcesEntry       `json:"sources"`
	Modded     map[string]float64 `json:"modded,omitempty"`
}

type sourcesEntry struct {
	Any    float64 `json:"any"`
	School float64 `json:"school"`
	Direct float64 `json:"direct"`
	Self   float64 `json:"self"`
}

type prereqEntry struct {
	Hard       []string `json:"hard"`
	Soft       []string `json:"soft"`
	SoftNeeded int      `json:"soft_needed"`
}

// SaveName returns the current save identity.
func (e *Engine) SaveName() string { return e.saveName }

// SetSaveName switches the save identity used for file names.
func (e *Engine) SetSaveName(name string) {
	if name != "" {
		e.saveName = name
	}
}

// Dirty reports unpersisted changes.
func (e *Engine) Dirty() bool { return e.dirty }

// MarshalState serializes the engine as the versioned progress document.
// Identifiers are written as persistent IDs so the state survives load-order
// changes; forms the resolver cannot name are skipped with a warning.
func (e *Engine) MarshalState() ([]byte, error) {
	doc := progressDoc{
		Version: FileVersion,
		Spells:  make(map[string]spellEntry, len(e.progress)),
		Targets: make(map[string]string, len(e.targets)),
		Prereqs: make(map[string]prereqEntry, len(e.prereqs)),
	}
	for id, p := range e.progress {
		pid, ok := e.resolver.ToPersistent(id)
		if !ok {
			slog.Warn("skipping unresolvable spell on save", "formId", id)
			continue
		}
		doc.Spells[pid] = spellEntry{
			Progress:   p.Percent,
			RequiredXP: p.RequiredXP,
			Unlocked:   p.Unlocked,
			Early:      e.earlyGranted[id],
			Sources: sourcesEntry{
				Any:    p.FromAny,
				School: p.FromSchool,
				Direct: p.FromDirect,
				Self:   p.FromSelf,
			},
			Modded: p.FromModded,
		}
	}
	for school, id := range e.targets {
		pid, ok := e.resolver.ToPersistent(id)
		if !ok {
			slog.Warn("skipping unresolvable target on save", "school", school, "formId", id)
			continue
		}
		doc.Targets[school] = pid
	}
	for id, r := range e.prereqs {
		pid, ok := e.resolver.ToPersistent(id)
		if !ok {
			continue
		}
		doc.Prereqs[pid] = prereqEntry{
			Hard:       e.toPersistentList(r.Hard),
			Soft:       e.toPersistentList(r.Soft),
			SoftNeeded: r.SoftNeeded,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (e *Engine) toPersistentList(ids []formid.FormID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if pid, ok := e.resolver.ToPersistent(id); ok {
			out = append(out, pid)
		}
	}
	return out
}

// UnmarshalState restores the engine from a progress document produced by
// MarshalState, possibly under a different load order. Entries whose
// persistent ID no longer resolves are skipped with a warning. Unknown keys
// are tolerated; a version above FileVersion is refused outright.
func (e *Engine) UnmarshalState(data []byte) error {
	var doc progressDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode progress: %w", err)
	}
	if doc.Version > FileVersion {
		return fmt.Errorf("progress version %d is newer than supported %d", doc.Version, FileVersion)
	}

	e.ResetAll()
	skipped := 0
	for pid, ent := range doc.Spells {
		id := e.resolver.FromPersistent(pid)
		if id == 0 {
			slog.Warn("skipping unresolvable spell on load", "persistentId", pid)
			skipped++
			continue
		}
		percent := ent.Progress
		if percent < 0 {
			percent = 0
		}
		if percent > 1 {
			percent = 1
		}
		required := ent.RequiredXP
		if required <= 0 {
			required = e.RequiredXP(id)
		}
		e.progress[id] = &SpellProgress{
			Percent:    percent,
			RequiredXP: required,
			Unlocked:   ent.Unlocked,
			FromAny:    ent.Sources.Any,
			FromSchool: ent.Sources.School,
			FromDirect: ent.Sources.Direct,
			FromSelf:   ent.Sources.Self,
			FromModded: ent.Modded,
		}
		if ent.Early {
			e.earlyGranted[id] = true
		}
	}
	for school, pid := range doc.Targets {
		id := e.resolver.FromPersistent(pid)
		if id == 0 {
			slog.Warn("skipping unresolvable target on load", "school", school, "persistentId", pid)
			skipped++
			continue
		}
		e.targets[school] = id
	}
	for pid, ent := range doc.Prereqs {
		id := e.resolver.FromPersistent(pid)
		if id == 0 {
			skipped++
			continue
		}
		e.prereqs[id] = PrereqRequirement{
			Hard:       e.fromPersistentList(ent.Hard),
			Soft:       e.fromPersistentList(ent.Soft),
			SoftNeeded: ent.SoftNeeded,
		}
	}
	if skipped > 0 {
		slog.Info("progress loaded with unresolved entries", "skipped", skipped)
	}
	e.dirty = false
	return nil
}

func (e *Engine) fromPersistentList(pids []string) []formid.FormID {
	var out []formid.FormID
	for _, pid := range pids {
		if id := e.resolver.FromPersistent(pid); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// SaveFile writes progress_<saveName>.json under dir.
func (e *Engine) SaveFile(dir string) error {
	data, err := e.MarshalState()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("progress_%s.json", e.saveName))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit progress file: %w", err)
	}
	e.dirty = false
	slog.Info("progress saved", "path", path, "spells", len(e.progress))
	return nil
}

// LoadFile restores progress_<saveName>.json from dir. A missing file is not
// an error; the engine keeps its current state.
func (e *Engine) LoadFile(dir string) error {
	path := filepath.Join(dir, fmt.Sprintf("progress_%s.json", e.saveName))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("no progress file", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read progress file: %w", err)
	}
	if err := e.UnmarshalState(data); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	slog.Info("progress loaded", "path", path, "spells", len(e.progress))
	return nil
}

// ProgressJSON renders a UI-facing snapshot of every tracked spell, keyed by
// hex form ID. The layout is consumed by the host-side menu scripts.
func (e *Engine) ProgressJSON() string {
	type uiEntry struct {
		Percent    float64 `json:"percent"`
		CurrentXP  float64 `json:"currentXP"`
		RequiredXP float64 `json:"requiredXP"`
		Unlocked   bool    `json:"unlocked"`
	}
	out := make(map[string]uiEntry, len(e.progress))
	for id, p := range e.progress {
		out[id.String()] = uiEntry{
			Percent:    p.Percent * 100,
			CurrentXP:  p.CurrentXP(),
			RequiredXP: p.RequiredXP,
			Unlocked:   p.Unlocked,
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// =========================================================================
// Co-save records
//
// The host's save system stores opaque tagged records next to the save
// file. Each record is: 4-byte ASCII tag, uint16 version, uint32 payload
// length, payload. Strings inside payloads are uint16-length-prefixed.
// All integers little-endian.
// =========================================================================

// EncodeRecords writes the SLPR and SLTR records to w.
func (e *Engine) EncodeRecords(w io.Writer) error {
	if err := writeRecord(w, RecordProgress, e.encodeProgressPayload()); err != nil {
		return err
	}
	return writeRecord(w, RecordTargets, e.encodeTargetsPayload())
}

// DecodeRecords reads records from r until EOF, applying those it
// recognizes. Unknown tags are skipped; a record version above the current
// one refuses that record and keeps defaults.
func (e *Engine) DecodeRecords(r io.Reader) error {
	for {
		var tag [4]byte
		if _, err := io.ReadFull(r, tag[:]); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("read record tag: %w", err)
		}
		var version uint16
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
			return fmt.Errorf("read record version: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return fmt.Errorf("read record length: %w", err)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("read record payload: %w", err)
		}
		if version > recordVersion {
			slog.Warn("skipping record from a newer version", "tag", string(tag[:]), "version", version)
			continue
		}
		switch string(tag[:]) {
		case RecordProgress:
			if err := e.decodeProgressPayload(payload); err != nil {
				return fmt.Errorf("decode %s: %w", RecordProgress, err)
			}
		case RecordTargets:
			if err := e.decodeTargetsPayload(payload); err != nil {
				return fmt.Errorf("decode %s: %w", RecordTargets, err)
			}
		default:
			slog.Debug("skipping unknown record", "tag", string(tag[:]))
		}
	}
}

func writeRecord(w io.Writer, tag string, payload []byte) error {
	if _, err := w.Write([]byte(tag)); err != nil {
		return fmt.Errorf("write record tag: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(recordVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (e *Engine) encodeProgressPayload() []byte {
	var buf bytes.Buffer
	count := uint32(0)
	var body bytes.Buffer
	for id, p := range e.progress {
		pid, ok := e.resolver.ToPersistent(id)
		if !ok {
			continue
		}
		writeString(&body, pid)
		binary.Write(&body, binary.LittleEndian, p.Percent)
		binary.Write(&body, binary.LittleEndian, p.RequiredXP)
		var flags uint8
		if p.Unlocked {
			flags |= 1
		}
		if e.earlyGranted[id] {
			flags |= 2
		}
		body.WriteByte(flags)
		binary.Write(&body, binary.LittleEndian, p.FromAny)
		binary.Write(&body, binary.LittleEndian, p.FromSchool)
		binary.Write(&body, binary.LittleEndian, p.FromDirect)
		binary.Write(&body, binary.LittleEndian, p.FromSelf)
		binary.Write(&body, binary.LittleEndian, uint16(len(p.FromModded)))
		for src, xp := range p.FromModded {
			writeString(&body, src)
			binary.Write(&body, binary.LittleEndian, xp)
		}
		count++
	}
	binary.Write(&buf, binary.LittleEndian, count)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func (e *Engine) decodeProgressPayload(payload []byte) error {
	r := bytes.NewReader(payload)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		pid, err := readString(r)
		if err != nil {
			return err
		}
		var percent, required float64
		if err := binary.Read(r, binary.LittleEndian, &percent); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &required); err != nil {
			return err
		}
		var flags uint8
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return err
		}
		var fromAny, fromSchool, fromDirect, fromSelf float64
		for _, dst := range []*float64{&fromAny, &fromSchool, &fromDirect, &fromSelf} {
			if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
				return err
			}
		}
		var moddedCount uint16
		if err := binary.Read(r, binary.LittleEndian, &moddedCount); err != nil {
			return err
		}
		var modded map[string]float64
		for j := uint16(0); j < moddedCount; j++ {
			src, err := readString(r)
			if err != nil {
				return err
			}
			var xp float64
			if err := binary.Read(r, binary.LittleEndian, &xp); err != nil {
				return err
			}
			if modded == nil {
				modded = make(map[string]float64)
			}
			modded[src] = xp
		}

		id := e.resolver.FromPersistent(pid)
		if id == 0 {
			slog.Warn("skipping unresolvable spell record", "persistentId", pid)
			continue
		}
		if percent < 0 {
			percent = 0
		}
		if percent > 1 {
			percent = 1
		}
		if required <= 0 {
			required = e.RequiredXP(id)
		}
		e.progress[id] = &SpellProgress{
			Percent:    percent,
			RequiredXP: required,
			Unlocked:   flags&1 != 0,
			FromAny:    fromAny,
			FromSchool: fromSchool,
			FromDirect: fromDirect,
			FromSelf:   fromSelf,
			FromModded: modded,
		}
		if flags&2 != 0 {
			e.earlyGranted[id] = true
		}
	}
	return nil
}

func (e *Engine) encodeTargetsPayload() []byte {
	var buf bytes.Buffer
	var body bytes.Buffer
	count := uint32(0)
	for school, id := range e.targets {
		pid, ok := e.resolver.ToPersistent(id)
		if !ok {
			continue
		}
		writeString(&body, school)
		writeString(&body, pid)
		count++
	}
	binary.Write(&buf, binary.LittleEndian, count)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func (e *Engine) decodeTargetsPayload(payload []byte) error {
	r := bytes.NewReader(payload)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		school, err := readString(r)
		if err != nil {
			return err
		}
		pid, err := readString(r)
		if err != nil {
			return err
		}
		id := e.resolver.FromPersistent(pid)
		if id == 0 {
			slog.Warn("skipping unresolvable target record", "school", school, "persistentId", pid)
			continue
		}
		e.targets[school] = id
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
