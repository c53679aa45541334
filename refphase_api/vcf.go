package refphase_api

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/pkg/errors"
)

var headerLineRegex = regexp.MustCompile(`^##(?P<headerType>[^=]*)=<(?P<content>.*)>$`)

// The fixed columns of a VCF record
var fixedColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// A VcfReader streams the records of a plain or BGZF compressed VCF file
type VcfReader struct {
	Header *Header

	file    *os.File
	bgzf    *bgzf.Reader
	scanner *bufio.Scanner

	// The first record line, read while parsing the header
	pending    string
	hasPending bool
}

// OpenVcf opens the VCF file and parses its header
// Files ending in .gz are read as BGZF
func OpenVcf(path string) (*VcfReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open VCF")
	}

	reader := &VcfReader{Header: newHeader(), file: file}
	var input io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		bgReader, err := bgzf.NewReader(file, 1)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "failed to read %s as BGZF", path)
		}
		reader.bgzf = bgReader
		input = bgReader
	}

	scanner := bufio.NewScanner(input)
	const maxCapacity = 8 * 1000000 // 8 MB
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)
	reader.scanner = scanner

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			reader.pending = line
			reader.hasPending = true
			break
		}
		if err := reader.Header.parse(line); err != nil {
			reader.Close()
			return nil, errors.Wrapf(err, "failed to parse the header of %s", path)
		}
	}
	if err := scanner.Err(); err != nil {
		reader.Close()
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	return reader, nil
}

// Read returns the next record, or io.EOF after the last one
func (reader *VcfReader) Read() (*Variant, error) {
	for {
		var line string
		if reader.hasPending {
			line = reader.pending
			reader.hasPending = false
		} else {
			if !reader.scanner.Scan() {
				if err := reader.scanner.Err(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			line = reader.scanner.Text()
		}

		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return parseVariant(line)
	}
}

// ReadAll returns all remaining records
func (reader *VcfReader) ReadAll() ([]*Variant, error) {
	variants := []*Variant{}
	for {
		variant, err := reader.Read()
		if err == io.EOF {
			return variants, nil
		}
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
}

func (reader *VcfReader) Close() error {
	if reader.bgzf != nil {
		reader.bgzf.Close()
	}
	return reader.file.Close()
}

// A VcfWriter writes a plain or BGZF compressed VCF file
// The content goes to a temporary sibling that only replaces the target on Close,
// so the target path never holds a partially written file
type VcfWriter struct {
	path  string
	file  *os.File
	bgzf  *bgzf.Writer
	out   *bufio.Writer
	count int
}

// CreateVcf starts writing the VCF file at path, files ending in .gz are written as BGZF
func CreateVcf(path string) (*VcfWriter, error) {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create the output file for %s", path)
	}

	writer := &VcfWriter{path: path, file: file}
	var output io.Writer = file
	if strings.HasSuffix(path, ".gz") {
		writer.bgzf = bgzf.NewWriter(file, 1)
		output = writer.bgzf
	}
	writer.out = bufio.NewWriter(output)
	return writer, nil
}

func (writer *VcfWriter) WriteHeader(header *Header) error {
	return header.write(writer.out)
}

func (writer *VcfWriter) Write(variant *Variant) error {
	writer.count++
	_, err := fmt.Fprintln(writer.out, variant.String())
	return err
}

// The amount of records written so far
func (writer *VcfWriter) Count() int {
	return writer.count
}

// Close flushes the file and moves it to its final location
func (writer *VcfWriter) Close() error {
	err := writer.out.Flush()
	if writer.bgzf != nil {
		if closeErr := writer.bgzf.Close(); err == nil {
			err = closeErr
		}
	}
	if closeErr := writer.file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(writer.file.Name())
		return errors.Wrapf(err, "failed to write %s", writer.path)
	}
	if err := os.Rename(writer.file.Name(), writer.path); err != nil {
		os.Remove(writer.file.Name())
		return errors.Wrapf(err, "failed to move the output to %s", writer.path)
	}
	return nil
}

// Abort discards everything written so far
func (writer *VcfWriter) Abort() {
	if writer.bgzf != nil {
		writer.bgzf.Close()
	}
	writer.file.Close()
	os.Remove(writer.file.Name())
}

// Parse the line and return it as a Variant
func parseVariant(line string) (*Variant, error) {
	data := strings.Split(line, "\t")
	if len(data) < 8 {
		return nil, errors.Errorf("malformed VCF record with %d columns: %q", len(data), line)
	}

	pos, err := strconv.ParseInt(data[1], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid position in VCF record %q", line)
	}

	variant := &Variant{
		Chromosome: data[0],
		Pos:        pos,
		Id:         data[2],
		Ref:        data[3],
		Alt:        data[4],
		Qual:       data[5],
		Filter:     data[6],
		Info:       data[7],
	}
	if len(data) > 8 {
		variant.Format = data[8]
		variant.Samples = data[9:]
	}
	return variant, nil
}

// Convert a variant to a VCF line
func (v *Variant) String() string {
	fields := []string{
		v.Chromosome,
		strconv.FormatInt(v.Pos, 10),
		v.Id,
		v.Ref,
		v.Alt,
		v.Qual,
		v.Filter,
		v.Info,
	}
	if v.Format != "" {
		fields = append(fields, v.Format)
		fields = append(fields, v.Samples...)
	}
	return strings.Join(fields, "\t")
}

// Create a new header struct
func newHeader() *Header {
	return &Header{
		Meta:    []string{},
		Format:  map[string]HeaderLineIdNumberTypeDescription{},
		Contig:  []HeaderLineIdLength{},
		Samples: []string{},
	}
}

// Parse the header line and add it to the Header struct
func (header *Header) parse(line string) error {
	if strings.HasPrefix(line, "#CHROM") {
		columns := strings.Split(line, "\t")
		if len(columns) > 9 {
			header.Samples = columns[9:]
		}
		return nil
	}

	matches := headerLineRegex.FindStringSubmatch(line)
	if len(matches) == 0 {
		header.Meta = append(header.Meta, line)
		return nil
	}

	headerType := matches[1]
	content := matches[2]
	contentMap := convertLineToMap(content)

	switch headerType {
	case "FORMAT":
		header.Format[contentMap["id"]] = HeaderLineIdNumberTypeDescription{
			Id:          contentMap["id"],
			Number:      contentMap["number"],
			Type:        contentMap["type"],
			Description: contentMap["description"],
		}
		header.Meta = append(header.Meta, line)
	case "contig":
		var length int64
		if value, ok := contentMap["length"]; ok {
			var err error
			length, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "could not convert the length of contig %s to an integer", contentMap["id"])
			}
		}
		header.Contig = append(header.Contig, HeaderLineIdLength{
			Id:     contentMap["id"],
			Length: length,
		})
	default:
		header.Meta = append(header.Meta, line)
	}
	return nil
}

// addFormat adds a FORMAT definition unless the header already has one with the same ID
func (header *Header) addFormat(line HeaderLineIdNumberTypeDescription) {
	if _, ok := header.Format[line.Id]; ok {
		return
	}
	header.Format[line.Id] = line
	header.Meta = append(header.Meta, line.formatLine())
}

// Write the header lines, ending with the column headers
func (header *Header) write(w io.Writer) error {
	lines := []string{}
	if len(header.Meta) == 0 || !strings.HasPrefix(header.Meta[0], "##fileformat=") {
		lines = append(lines, "##fileformat=VCFv4.2")
	}
	lines = append(lines, header.Meta...)

	for _, contig := range header.Contig {
		if contig.Length > 0 {
			lines = append(lines, fmt.Sprintf("##contig=<ID=%s,length=%d>", contig.Id, contig.Length))
		} else {
			lines = append(lines, fmt.Sprintf("##contig=<ID=%s>", contig.Id))
		}
	}

	columnHeaders := append([]string{}, fixedColumns...)
	if len(header.Samples) > 0 {
		columnHeaders = append(columnHeaders, "FORMAT")
		columnHeaders = append(columnHeaders, header.Samples...)
	}
	lines = append(lines, strings.Join(columnHeaders, "\t"))

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// convertLineToMap converts the header line contents to a map suitable to transform to a struct
func convertLineToMap(line string) map[string]string {
	data := map[string]string{}
	word := ""
	key := ""
	quote := ""
	for _, letter := range strings.Split(line, "") {
		if letter == "=" && key == "" && quote == "" {
			key = strings.ToLower(word)
			word = ""
			continue
		} else if letter == "," && quote == "" {
			data[key] = word
			key = ""
			word = ""
			continue
		}

		word += letter

		if letter == quote {
			quote = ""
		} else if quote == "" && (letter == "\"" || letter == "'") {
			quote = letter
		}
	}
	data[key] = word

	return data
}
