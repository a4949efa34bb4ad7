package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Topics []struct {
		ID          string `yaml:"id"`
		model.Topic `yaml:",inline"`
	} `yaml:"topics"`
	Challenges []struct {
		ID              string `yaml:"id"`
		model.Challenge `yaml:",inline"`
	} `yaml:"challenges"`
}

type seedReport struct {
	Topics, Challenges int
	Skipped            []string
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load topics and challenges from a YAML file",
	Long: "Load topics and challenges from a YAML file. Documents whose id already\n" +
		"exists are left untouched.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rep, err := seed(cmd.Context(), s, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %d topics and %d challenges.\n", rep.Topics, rep.Challenges)
		for _, id := range rep.Skipped {
			fmt.Fprintf(out, "  skipped existing %s\n", id)
		}
		return nil
	},
}

func seed(ctx context.Context, docs store.Documents, r io.Reader) (*seedReport, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	rep := &seedReport{}
	create := func(collection, id string, data any) (bool, error) {
		if id == "" {
			return false, fmt.Errorf("%s entry is missing an id", collection)
		}
		_, err := docs.Create(ctx, collection, id, data)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, store.ErrAlreadyExists):
			rep.Skipped = append(rep.Skipped, collection+"/"+id)
			return false, nil
		default:
			return false, fmt.Errorf("create %s %s: %w", collection, id, err)
		}
	}

	for _, t := range file.Topics {
		if t.Name == "" {
			return nil, fmt.Errorf("topic %s: name is required", t.ID)
		}
		ok, err := create(model.Topics, t.ID, t.Topic)
		if err != nil {
			return nil, err
		}
		if ok {
			rep.Topics++
		}
	}
	for _, c := range file.Challenges {
		ch := c.Challenge
		if ch.Prompt() == "" {
			return nil, fmt.Errorf("challenge %s: a title, question or coreProvocation is required", c.ID)
		}
		if ch.Type == "" {
			ch.Type = model.TypeText
		}
		if ch.Type == model.TypeMCQ && (len(ch.Options) < 2 || ch.CorrectAnswer == "") {
			return nil, fmt.Errorf("challenge %s: mcq needs at least two options and a correctAnswer", c.ID)
		}
		if ch.Status == "" {
			ch.Status = model.StatusUnused
		}
		if ch.Source == "" {
			ch.Source = model.SourceCurated
		}
		ok, err := create(model.Challenges, c.ID, ch)
		if err != nil {
			return nil, err
		}
		if ok {
			rep.Challenges++
		}
	}
	return rep, nil
}
