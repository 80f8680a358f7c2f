// Package pofile reads and writes gettext PO/POT files and converts
// their entries to and from translation units.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/merge"
	"github.com/minios-linux/transmerge/plural"
)

// Entry is a single message of a PO file.
type Entry struct {
	// TranslatorComments are "# " lines.
	TranslatorComments []string
	// ExtractedComments are "#." lines.
	ExtractedComments []string
	// References are "#:" lines.
	References []string
	// Flags are the comma separated "#," flags.
	Flags []string
	// PreviousMsgID is the "#| msgid" of fuzzy entries.
	PreviousMsgID string

	MsgCtxt     string
	MsgID       string
	MsgIDPlural string
	// MsgStr holds the translation; for plural entries index i is
	// msgstr[i].
	MsgStr []string

	// Obsolete marks "#~" entries.
	Obsolete bool
}

// IsFuzzy reports whether the entry carries the fuzzy flag.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// HasFlag reports whether flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy {
		if !e.IsFuzzy() {
			e.Flags = append([]string{"fuzzy"}, e.Flags...)
		}
		return
	}
	filtered := e.Flags[:0]
	for _, f := range e.Flags {
		if f != "fuzzy" {
			filtered = append(filtered, f)
		}
	}
	e.Flags = filtered
}

// IsPlural reports whether the entry has a msgid_plural.
func (e *Entry) IsPlural() bool {
	return e.MsgIDPlural != ""
}

// Source returns the source string in storage encoding.
func (e *Entry) Source() string {
	if e.IsPlural() {
		return plural.Join([]string{e.MsgID, e.MsgIDPlural})
	}
	return e.MsgID
}

// Target returns the translation as a parser value.
func (e *Entry) Target() plural.Value {
	if e.IsPlural() {
		forms := make(plural.Forms, len(e.MsgStr))
		copy(forms, e.MsgStr)
		return forms
	}
	if len(e.MsgStr) == 0 {
		return plural.Plain("")
	}
	return plural.Plain(e.MsgStr[0])
}

// HasTranslation reports whether every form is non-empty.
func (e *Entry) HasTranslation() bool {
	if len(e.MsgStr) == 0 {
		return false
	}
	for _, s := range e.MsgStr {
		if s == "" {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no form is translated.
func (e *Entry) IsEmpty() bool {
	for _, s := range e.MsgStr {
		if s != "" {
			return false
		}
	}
	return true
}

// File is a parsed PO or POT file.
type File struct {
	// Header is the msgid "" entry.
	Header *Entry
	// Entries are the messages in file order.
	Entries []*Entry
}

// NewFile returns an empty file with an empty header.
func NewFile() *File {
	return &File{Header: &Entry{MsgStr: []string{""}}}
}

// HeaderField returns a header field by case-insensitive name.
func (f *File) HeaderField(name string) string {
	if f.Header == nil || len(f.Header.MsgStr) == 0 {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr[0], "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			if strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// SetHeaderField replaces or appends a header field.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}
	if len(f.Header.MsgStr) == 0 {
		f.Header.MsgStr = []string{""}
	}

	lines := strings.Split(f.Header.MsgStr[0], "\n")
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 && strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
			lines[i] = name + ": " + value
			f.Header.MsgStr[0] = strings.Join(lines, "\n")
			return
		}
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = append(lines[:n-1], name+": "+value, "")
	} else {
		lines = append(lines, name+": "+value)
	}
	f.Header.MsgStr[0] = strings.Join(lines, "\n")
}

// Language returns the Language header.
func (f *File) Language() string {
	return f.HeaderField("Language")
}

// Records converts the translated live entries to import records.
// Untranslated entries are never imported; fuzzy entries only when
// includeFuzzy is set.
func (f *File) Records(includeFuzzy bool) []merge.Record {
	records := make([]merge.Record, 0, len(f.Entries))
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" || e.IsEmpty() {
			continue
		}
		if e.IsFuzzy() && !includeFuzzy {
			continue
		}
		records = append(records, merge.Record{
			Source:  e.Source(),
			Context: e.MsgCtxt,
			Target:  e.Target(),
		})
	}
	return records
}

// Units converts the live entries of a template or PO file to
// translation units. Targets and fuzzy flags are kept.
func (f *File) Units() []*corpus.Unit {
	var units []*corpus.Unit
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" {
			continue
		}
		target := ""
		if !e.IsEmpty() {
			target = plural.Normalize(e.Target())
		}
		units = append(units, &corpus.Unit{
			Source:   e.Source(),
			Context:  e.MsgCtxt,
			Target:   target,
			Fuzzy:    e.IsFuzzy(),
			Position: len(units),
		})
	}
	return units
}

// FromTranslation builds a PO file holding the units of tr.
func FromTranslation(tr *corpus.Translation, project string) *File {
	f := NewFile()
	f.Header = MakeHeader(project, tr.Language)
	for _, u := range tr.Units {
		e := &Entry{MsgCtxt: u.Context}
		src := u.SourceForms()
		e.MsgID = src[0]
		if len(src) > 1 {
			e.MsgIDPlural = src[1]
			if u.Target == "" {
				e.MsgStr = make([]string, len(src))
			} else {
				e.MsgStr = u.TargetForms()
			}
		} else {
			e.MsgStr = []string{u.Target}
		}
		if u.Fuzzy {
			e.SetFuzzy(true)
		}
		f.Entries = append(f.Entries, e)
	}
	return f
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

type parser struct {
	f       *File
	current *Entry
	// field is the keyword the next continuation line appends to.
	field string
	// index is the msgstr index when field is "msgstr".
	index int
}

func (p *parser) entry() *Entry {
	if p.current == nil {
		p.current = &Entry{}
	}
	return p.current
}

func (p *parser) flush() {
	if p.current == nil {
		return
	}
	if p.current.MsgID == "" && p.current.MsgIDPlural == "" && !p.current.Obsolete {
		p.f.Header = p.current
	} else {
		p.f.Entries = append(p.f.Entries, p.current)
	}
	p.current = nil
	p.field = ""
}

func (p *parser) setMsgStr(idx int, value string, appendTo bool) {
	e := p.entry()
	for len(e.MsgStr) <= idx {
		e.MsgStr = append(e.MsgStr, "")
	}
	if appendTo {
		e.MsgStr[idx] += value
	} else {
		e.MsgStr[idx] = value
	}
}

func (p *parser) comment(line string) {
	e := p.entry()
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			if flag = strings.TrimSpace(flag); flag != "" {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		if prev := strings.TrimSpace(line[2:]); strings.HasPrefix(prev, "msgid ") {
			e.PreviousMsgID = unquote(strings.TrimPrefix(prev, "msgid "))
		}
	default:
		e.TranslatorComments = append(e.TranslatorComments, strings.TrimPrefix(line[1:], " "))
	}
}

func (p *parser) keyword(lineNum int, line string) error {
	e := p.entry()
	switch {
	case strings.HasPrefix(line, "msgctxt "):
		e.MsgCtxt = unquote(line[len("msgctxt "):])
		p.field = "msgctxt"
	case strings.HasPrefix(line, "msgid_plural "):
		e.MsgIDPlural = unquote(line[len("msgid_plural "):])
		p.field = "msgid_plural"
	case strings.HasPrefix(line, "msgid "):
		e.MsgID = unquote(line[len("msgid "):])
		p.field = "msgid"
	case strings.HasPrefix(line, "msgstr["):
		end := strings.Index(line, "]")
		if end < 0 {
			return fmt.Errorf("line %d: invalid msgstr format: %s", lineNum, line)
		}
		idx, err := strconv.Atoi(line[len("msgstr["):end])
		if err != nil || idx < 0 {
			return fmt.Errorf("line %d: invalid msgstr index: %s", lineNum, line)
		}
		p.setMsgStr(idx, unquote(line[end+1:]), false)
		p.field, p.index = "msgstr", idx
	case strings.HasPrefix(line, "msgstr "):
		p.setMsgStr(0, unquote(line[len("msgstr "):]), false)
		p.field, p.index = "msgstr", 0
	case strings.HasPrefix(line, `"`):
		val := unquote(line)
		switch p.field {
		case "msgctxt":
			e.MsgCtxt += val
		case "msgid":
			e.MsgID += val
		case "msgid_plural":
			e.MsgIDPlural += val
		case "msgstr":
			p.setMsgStr(p.index, val, true)
		default:
			return fmt.Errorf("line %d: string without keyword", lineNum)
		}
	default:
		return fmt.Errorf("line %d: unexpected content: %s", lineNum, line)
	}
	return nil
}

// Parse reads a PO/POT file.
func Parse(r io.Reader) (*File, error) {
	p := &parser{f: NewFile()}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			p.flush()
			continue
		}

		if strings.HasPrefix(line, "#~") {
			p.entry().Obsolete = true
			line = strings.TrimSpace(line[2:])
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "|") {
				p.comment("#" + line)
				continue
			}
		} else if strings.HasPrefix(line, "#") {
			p.comment(line)
			continue
		}

		if err := p.keyword(lineNum, strings.TrimSpace(line)); err != nil {
			return nil, err
		}
	}
	p.flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}
	return p.f, nil
}

// ParseFile reads a PO/POT file from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Write writes the file in PO syntax.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if f.Header != nil {
		writeEntry(bw, f.Header)
	}
	for _, e := range f.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}
	return bw.Flush()
}

// WriteFile writes the file to disk.
func (f *File) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	for _, c := range e.TranslatorComments {
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
	}

	if e.MsgCtxt != "" {
		writeField(w, prefix+"msgctxt", e.MsgCtxt)
	}
	writeField(w, prefix+"msgid", e.MsgID)

	if e.IsPlural() {
		writeField(w, prefix+"msgid_plural", e.MsgIDPlural)
		forms := e.MsgStr
		if len(forms) == 0 {
			forms = []string{"", ""}
		}
		for i, s := range forms {
			writeField(w, fmt.Sprintf("%smsgstr[%d]", prefix, i), s)
		}
		return
	}

	msgstr := ""
	if len(e.MsgStr) > 0 {
		msgstr = e.MsgStr[0]
	}
	writeField(w, prefix+"msgstr", msgstr)
}

// writeField writes a keyword and its value, splitting multi-line
// values after each newline.
func writeField(w *bufio.Writer, keyword, value string) {
	if !strings.Contains(value, "\n") || value == "\n" {
		fmt.Fprintf(w, "%s %s\n", keyword, quote(value))
		return
	}
	fmt.Fprintf(w, "%s \"\"\n", keyword)
	parts := strings.SplitAfter(value, "\n")
	for _, part := range parts {
		if part != "" {
			fmt.Fprintf(w, "%s\n", quote(part))
		}
	}
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Headers
// ---------------------------------------------------------------------------

// MakeHeader returns a header entry for an exported translation.
func MakeHeader(project, language string) *Entry {
	now := time.Now().UTC().Format("2006-01-02 15:04+0000")
	header := fmt.Sprintf(
		"Project-Id-Version: %s\n"+
			"PO-Revision-Date: %s\n"+
			"Language: %s\n"+
			"MIME-Version: 1.0\n"+
			"Content-Type: text/plain; charset=UTF-8\n"+
			"Content-Transfer-Encoding: 8bit\n"+
			"Plural-Forms: %s\n",
		project, now, language, PluralFormsForLang(language),
	)
	return &Entry{MsgStr: []string{header}}
}

// PluralFormsForLang returns the Plural-Forms header of a language.
func PluralFormsForLang(lang string) string {
	base := lang
	if idx := strings.IndexAny(lang, "_-"); idx > 0 {
		base = lang[:idx]
	}

	switch base {
	case "ja", "ko", "zh", "vi", "th", "id", "ms":
		return "nplurals=1; plural=0;"
	case "fr", "pt":
		return "nplurals=2; plural=(n > 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	case "ar":
		return "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}
