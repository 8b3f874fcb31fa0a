package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"car_intake/internal/form"

	"github.com/spf13/cobra"
)

var validateRecord bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize an intake record JSON the way the bot does before saving",
	Long: `Reads an intake record from the file or stdin, drops empty values,
blank guarantees and services without content, and prints the result.
With --validate the record is also checked and violations are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return normalizeRecord(in, cmd.OutOrStdout(), validateRecord)
	},
}

func init() {
	normalizeCmd.Flags().BoolVar(&validateRecord, "validate", false, "validate the record and list violations")
}

func normalizeRecord(r io.Reader, w io.Writer, check bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	if check {
		var rec form.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if v := form.Validate(rec); !v.Empty() {
			return violationsError(v)
		}
	}

	out := form.Normalize(raw)
	if out == nil {
		return form.ErrEmptyPayload
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func violationsError(v form.Violations) error {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d violation(s):", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, v[k])
	}
	return fmt.Errorf("%s", b.String())
}
