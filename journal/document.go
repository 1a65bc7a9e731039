package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/theimaginaryfoundation/journal-distiller/journal/fileutils"
)

// ErrMalformedDocument marks input that is not a JSON object of threads.
var ErrMalformedDocument = errors.New("malformed journal document")

// LoadReport describes what the validating parse kept and skipped.
type LoadReport struct {
	Threads   int
	Posts     int
	Malformed []MalformedRecord
}

// MalformedRecord is a thread or post that was dropped at load time. PostID is empty for thread-level records.
type MalformedRecord struct {
	ThreadID string
	PostID   string
	Reason   string
}

// LoadCollection reads a journal document (or a checkpoint, which has the same shape) from path.
//
// The document is a JSON object mapping thread IDs to threads:
//
//	{ "<thread id>": { "title": "...", "category": "...", "diary": { "<post id>": { "date": "DD.MM.YYYY", ... } } } }
//
// Key order is preserved at every level. A missing file yields an error wrapping fs.ErrNotExist,
// a syntax or shape error at the top level yields ErrMalformedDocument. Malformed threads and posts
// are skipped and listed in the report.
func LoadCollection(path string) (Collection, LoadReport, error) {
	if path == "" {
		return Collection{}, LoadReport{}, errors.New("LoadCollection: path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return Collection{}, LoadReport{}, fmt.Errorf("LoadCollection: open: %w", err)
	}
	defer f.Close()

	c, report, err := DecodeCollection(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return Collection{}, LoadReport{}, fmt.Errorf("LoadCollection: %s: %w", path, err)
	}
	return c, report, nil
}

// DecodeCollection parses a journal document from r with the same rules as LoadCollection.
func DecodeCollection(r io.Reader) (Collection, LoadReport, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return Collection{}, LoadReport{}, decodeError("read first token", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Collection{}, LoadReport{}, fmt.Errorf("%w: expected top-level object, got %v", ErrMalformedDocument, tok)
	}

	var (
		c      Collection
		report LoadReport
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Collection{}, LoadReport{}, decodeError("read thread key", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return Collection{}, LoadReport{}, fmt.Errorf("%w: expected string key, got %T", ErrMalformedDocument, keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Collection{}, LoadReport{}, decodeError(fmt.Sprintf("decode thread %q", id), err)
		}

		t, reason := parseThread(id, raw, &report)
		if reason != "" {
			report.Malformed = append(report.Malformed, MalformedRecord{ThreadID: id, Reason: reason})
			continue
		}
		c.Put(t)
	}

	if tok, err := dec.Token(); err != nil {
		return Collection{}, LoadReport{}, decodeError("read closing token", err)
	} else if d, ok := tok.(json.Delim); !ok || d != '}' {
		return Collection{}, LoadReport{}, fmt.Errorf("%w: expected closing '}', got %v", ErrMalformedDocument, tok)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Collection{}, LoadReport{}, fmt.Errorf("%w: trailing data after document", ErrMalformedDocument)
	}

	report.Threads = c.Len()
	report.Posts = c.PostCount()
	return c, report, nil
}

// UnmarshalJSON decodes a journal document, silently skipping malformed records.
func (c *Collection) UnmarshalJSON(b []byte) error {
	got, _, err := DecodeCollection(bytes.NewReader(b))
	if err != nil {
		return err
	}
	*c = got
	return nil
}

func decodeError(op string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrMalformedDocument, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type objectField struct {
	key   string
	value json.RawMessage
}

// objectFields splits a raw JSON object into its fields in document order.
// A repeated key replaces the earlier value but keeps the earlier position.
func objectFields(raw json.RawMessage) ([]objectField, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}

	var fields []objectField
	pos := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		if i, ok := pos[key]; ok {
			fields[i].value = v
			continue
		}
		pos[key] = len(fields)
		fields = append(fields, objectField{key: key, value: v})
	}
	return fields, true
}

func lookup(fields []objectField, key string) (json.RawMessage, bool) {
	for _, f := range fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringField(fields []objectField, key string) string {
	raw, ok := lookup(fields, key)
	if !ok {
		return ""
	}
	s, _ := rawString(raw)
	return s
}

func stringList(fields []objectField, key string) []string {
	raw, ok := lookup(fields, key)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := rawString(it); ok {
			out = append(out, s)
		}
	}
	return out
}

// parseThread returns a non-empty reason when the thread is malformed.
func parseThread(id string, raw json.RawMessage, report *LoadReport) (Thread, string) {
	fields, ok := objectFields(raw)
	if !ok {
		return Thread{}, "thread is not an object"
	}
	diaryRaw, ok := lookup(fields, "diary")
	if !ok {
		return Thread{}, "thread has no diary"
	}
	diary, ok := objectFields(diaryRaw)
	if !ok {
		return Thread{}, "diary is not an object"
	}

	t := Thread{
		ID:       id,
		Title:    stringField(fields, "title"),
		Category: stringField(fields, "category"),
		Posts:    make([]Post, 0, len(diary)),
	}
	for _, f := range diary {
		p, ok := parsePost(f.key, f.value)
		if !ok {
			report.Malformed = append(report.Malformed, MalformedRecord{ThreadID: id, PostID: f.key, Reason: "post is not an object"})
			continue
		}
		t.Posts = append(t.Posts, p)
	}
	return t, ""
}

func parsePost(id string, raw json.RawMessage) (Post, bool) {
	fields, ok := objectFields(raw)
	if !ok {
		return Post{}, false
	}
	p := Post{
		ID:      id,
		Date:    stringField(fields, "date"),
		Article: stringField(fields, "article"),
		Quotes:  stringList(fields, "quotes"),
		Links:   stringList(fields, "links"),
	}
	if mqRaw, ok := lookup(fields, "memberquotes"); ok {
		if mq, ok := objectFields(mqRaw); ok {
			for _, f := range mq {
				if s, ok := rawString(f.value); ok {
					p.MemberQuotes = append(p.MemberQuotes, MemberQuote{ID: f.key, Text: s})
				}
			}
		}
	}
	return p, true
}

// MarshalJSON encodes the collection in the input document shape, preserving order.
// Empty optional post fields are omitted.
func (c Collection) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, t := range c.threads {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeJSONString(&b, t.ID); err != nil {
			return nil, err
		}
		b.WriteByte(':')
		if err := writeThread(&b, t); err != nil {
			return nil, fmt.Errorf("thread %q: %w", t.ID, err)
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeThread(b *bytes.Buffer, t Thread) error {
	b.WriteString(`{"title":`)
	if err := writeJSONString(b, t.Title); err != nil {
		return err
	}
	b.WriteString(`,"category":`)
	if err := writeJSONString(b, t.Category); err != nil {
		return err
	}
	b.WriteString(`,"diary":{`)
	for i, p := range t.Posts {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeJSONString(b, p.ID); err != nil {
			return err
		}
		b.WriteByte(':')
		if err := writePost(b, p); err != nil {
			return err
		}
	}
	b.WriteString("}}")
	return nil
}

func writePost(b *bytes.Buffer, p Post) error {
	b.WriteString(`{"date":`)
	if err := writeJSONString(b, p.Date); err != nil {
		return err
	}
	if p.Article != "" {
		b.WriteString(`,"article":`)
		if err := writeJSONString(b, p.Article); err != nil {
			return err
		}
	}
	if len(p.MemberQuotes) > 0 {
		b.WriteString(`,"memberquotes":{`)
		for i, q := range p.MemberQuotes {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSONString(b, q.ID); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeJSONString(b, q.Text); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	}
	if err := writeStringList(b, "quotes", p.Quotes); err != nil {
		return err
	}
	if err := writeStringList(b, "links", p.Links); err != nil {
		return err
	}
	b.WriteByte('}')
	return nil
}

func writeStringList(b *bytes.Buffer, key string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	fmt.Fprintf(b, `,%q:[`, key)
	for i, s := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeJSONString(b, s); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

// writeJSONString writes s as a JSON string without HTML escaping, so quotes with markup stay readable.
func writeJSONString(b *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// SaveCheckpoint writes the filtered collection atomically so a later run can reuse it.
func SaveCheckpoint(path string, c Collection, pretty bool) error {
	if path == "" {
		return errors.New("SaveCheckpoint: path is empty")
	}
	b, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("SaveCheckpoint: marshal: %w", err)
	}
	if pretty {
		var out bytes.Buffer
		if err := json.Indent(&out, b, "", "  "); err != nil {
			return fmt.Errorf("SaveCheckpoint: indent: %w", err)
		}
		b = out.Bytes()
	}
	if err := fileutils.WriteFileAtomicSameDir(path, b, 0o644); err != nil {
		return fmt.Errorf("SaveCheckpoint: write: %w", err)
	}
	return nil
}
