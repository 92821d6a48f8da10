package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/index"
)

type converter struct {
	outDir   string
	validate bool
	log      *logrus.Logger
}

// outputPath maps search-index.js to <outDir>/search-index.json.
func (c converter) outputPath(input string) string {
	base := filepath.Base(input)
	return filepath.Join(c.outDir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
}

// convert parses one index in either format and writes it as normalized JSON.
func (c converter) convert(ctx context.Context, input string) error {
	data, err := index.FileSource{Path: input}.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	format := index.Detect(data)
	raw, err := index.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	fields := logrus.Fields{"input": input, "format": format, "namespaces": len(raw.Namespaces)}
	if c.validate {
		cat, err := catalog.BuildContext(ctx, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		stats := cat.Stats()
		fields["items"] = stats.Items
		fields["duplicates"] = stats.Duplicates
		fields["version"] = cat.Version()
	}

	out, err := index.EncodeJSON(raw)
	if err != nil {
		return fmt.Errorf("%s: failed to encode: %w", input, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := c.outputPath(input)
	if err := os.WriteFile(target, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	fields["output"] = target
	fields["size_kb"] = len(out) / 1024
	c.log.WithFields(fields).Info("Index converted")
	return nil
}
