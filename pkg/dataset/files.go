package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// OutputFileName is the single part file written into an output directory.
const OutputFileName = "part-r-00000"

// InputFiles resolves path to the record files it names: the file itself, or
// every non-hidden "part-*" file (falling back to every regular file) of a
// directory, sorted by name.
func InputFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var parts, all []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		full := filepath.Join(path, name)
		all = append(all, full)
		if strings.HasPrefix(name, "part-") {
			parts = append(parts, full)
		}
	}

	if len(parts) > 0 {
		sort.Strings(parts)
		return parts, nil
	}
	sort.Strings(all)
	return all, nil
}

// ReadAll loads every record under path in file order.
func ReadAll(path string) ([]Record, error) {
	files, err := InputFiles(path)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, f := range files {
		recs, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// WriteAll writes records to dir/part-r-00000, creating dir. An existing
// output file is an error: outputs are write-once.
func WriteAll(dir string, records []Record, c Compression) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, OutputFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}

	w, err := NewWriter(f, c)
	if err != nil {
		f.Close()
		return "", err
	}

	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			f.Close()
			return "", fmt.Errorf("writing record %q: %w", rec.Key, err)
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// metadataSafe strips the separators a file name cannot carry inside a key.
var metadataSafe = strings.NewReplacer(pairSep, "_", kvSep, "_")

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// PackDirectory builds records from a directory of images. When the directory
// holds one sub-directory per label, each image is keyed with its labelid (the
// sub-directory's index in name order) and label_count; loose images get only
// their ext.
func PackDirectory(root string) ([]Record, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			labels = append(labels, e.Name())
		}
	}
	sort.Strings(labels)

	var records []Record
	loose, err := packImages(root, nil)
	if err != nil {
		return nil, err
	}
	records = append(records, loose...)

	for id, label := range labels {
		md := Metadata{values: map[string]string{}}
		md = md.With(KeyLabelID, strconv.Itoa(id))
		md = md.With(KeyLabelCount, strconv.Itoa(len(labels)))

		recs, err := packImages(filepath.Join(root, label), &md)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	return records, nil
}

func packImages(dir string, base *Metadata) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !imageExts[ext] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		md := Metadata{values: map[string]string{}}
		if base != nil {
			md = *base
		}
		md = md.With(KeyName, metadataSafe.Replace(e.Name()))
		md = md.With(KeyExt, strings.TrimPrefix(ext, "."))

		records = append(records, Record{Key: md.String(), Value: data})
	}
	return records, nil
}
