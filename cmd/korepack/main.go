// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command korepack builds, lists and extracts pack archives. Shader archives
// built from a directory of .spv files can be passed to korender as
// -shaders pack:<file>.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/devblok/korender/asset/pack"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	author   = flag.String("author", currentUser(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the file given")
	list     = flag.String("l", "", "List the contents of the file given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file")
	outDir   = flag.String("o", ".", "Directory to extract into")
	force    = flag.Bool("force", false, "Overwrite existing files")
	silent   = flag.Bool("s", false, "Silent")
)

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Name == "" {
		return "unknown"
	}
	return u.Name
}

func main() {
	flag.Parse()

	log := logrus.New()
	if *silent {
		log.SetLevel(logrus.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *list, *compress} {
		if op != "" {
			ops++
		}
	}
	if ops == 0 {
		flag.PrintDefaults()
		return
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(log, *compress, *dstFile)
	case *extract != "":
		err = extractFiles(log, *extract, *outDir)
	case *list != "":
		err = listFiles(os.Stdout, *list)
	}
	if err != nil {
		log.WithError(err).Fatal("korepack")
	}
}

func create(path string) (*os.File, error) {
	if !*force {
		if _, err := os.Stat(path); err == nil {
			return nil, errors.Errorf("%s exists, will not overwrite", path)
		}
	}
	return os.Create(path)
}

// collect walks root and returns every regular file with the slash separated
// name it is archived under.
func collect(root string) (paths, names []string, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return []string{root}, []string{filepath.Base(root)}, nil
	}
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, path)
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	return paths, names, err
}

func compressFiles(log logrus.FieldLogger, src, dst string) error {
	paths, names, err := collect(src)
	if err != nil {
		return errors.Wrap(err, "collect")
	}

	builder, err := pack.NewBuilder(pack.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range paths {
		path, name := paths[i], names[i]
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := builder.Add(name, f); err != nil {
				return err
			}
			log.WithField("file", name).Debug("compressed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := create(dst)
	if err != nil {
		return err
	}
	n, err := builder.WriteTo(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	log.WithFields(logrus.Fields{
		"archive": dst,
		"files":   builder.Len(),
		"bytes":   n,
	}).Info("archive written")
	return nil
}

// target is where name is extracted to under dir. Names leaving dir are
// rejected.
func target(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("refusing to extract %q outside %s", name, dir)
	}
	return filepath.Join(dir, clean), nil
}

func extractFiles(log logrus.FieldLogger, src, dir string) error {
	f, err := pack.OpenFile(src)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, name := range f.Names() {
		path, err := target(dir, name)
		if err != nil {
			return err
		}
		r, err := f.Open(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		out, err := create(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, r)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "extract %s", name)
		}
		log.WithField("file", path).Debug("extracted")
	}
	log.WithFields(logrus.Fields{
		"archive": src,
		"files":   len(f.Names()),
	}).Info("archive extracted")
	return nil
}

func listFiles(w io.Writer, src string) error {
	f, err := pack.OpenFile(src)
	if err != nil {
		return err
	}
	defer f.Close()

	h := f.Header()
	fmt.Fprintf(w, "author:  %s\nversion: %d\ncreated: %s\n\n",
		h.Author, h.Version, time.Unix(h.DateCreated, 0).Format(time.RFC3339))
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tCOMPRESSED")
	for _, e := range h.Index {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", e.Name, e.Size, e.CompressedSize)
	}
	return tw.Flush()
}
