package encoder

import (
	"context"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Options configures how a collection of documents is turned into training data.
type Options struct {
	// TrainRatio is the fraction of documents that go to the train split, in (0, 1].
	TrainRatio float64
	// Seed of the shuffle that precedes the split.
	Seed uint64
	// ExcludeTail labels only the first sub-word piece of each word, see Encode.
	ExcludeTail bool
	// LanguageFilter, if not empty, keeps only documents whose Language is listed.
	LanguageFilter []string
	// SplitBeforeEncode shuffles and splits the documents into train and test before encoding.
	// If false, all documents are encoded in their original order into the train split.
	SplitBeforeEncode bool
	// Workers is the number of documents encoded in parallel. 0 uses runtime.NumCPU().
	Workers int
}

// DefaultOptions returns the options used to build the span detection dataset.
func DefaultOptions() Options {
	return Options{
		TrainRatio:        0.9,
		Seed:              42,
		ExcludeTail:       true,
		SplitBeforeEncode: true,
	}
}

// Validate returns an error if the options can't be used.
func (o Options) Validate() error {
	if o.SplitBeforeEncode && (o.TrainRatio <= 0 || o.TrainRatio > 1) {
		return errors.Errorf("train ratio must be in (0, 1], got %g", o.TrainRatio)
	}
	if o.Workers < 0 {
		return errors.Errorf("workers must be >= 0, got %d", o.Workers)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// EncodeBatch encodes docs in parallel, using at most opts.Workers goroutines.
//
// The result is in the same order as docs. The first failing document cancels the remaining
// work and its error is returned, annotated with the document id.
func EncodeBatch(ctx context.Context, docs []Document, tokenizer api.TokenizerWithSpans, opts Options) ([]*Encoded, error) {
	results := make([]*Encoded, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			encoded, err := EncodeDocument(docs[i], tokenizer, opts.ExcludeTail)
			if err != nil {
				return err
			}
			results[i] = encoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("encoded %d documents with %d workers", len(docs), opts.workers())
	return results, nil
}

// Splits holds the encoded train and test documents.
type Splits struct {
	Train []*Encoded
	Test  []*Encoded

	// Filtered is the number of documents dropped by the language filter.
	Filtered int
}

// Prepare filters, splits and encodes the documents according to opts.
//
// The split is deterministic for a given Seed: documents are shuffled with a PCG generator
// seeded by it, and the first floor(TrainRatio*n) shuffled documents form the train split.
func Prepare(ctx context.Context, docs []Document, tokenizer api.TokenizerWithSpans, opts Options) (*Splits, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	kept := FilterLanguages(docs, opts.LanguageFilter)
	splits := &Splits{Filtered: len(docs) - len(kept)}
	if splits.Filtered > 0 {
		klog.V(1).Infof("language filter %v dropped %d of %d documents", opts.LanguageFilter, splits.Filtered, len(docs))
	}

	if !opts.SplitBeforeEncode {
		train, err := EncodeBatch(ctx, kept, tokenizer, opts)
		if err != nil {
			return nil, err
		}
		splits.Train = train
		return splits, nil
	}

	trainDocs, testDocs := Split(kept, opts.TrainRatio, opts.Seed)
	var err error
	if splits.Train, err = EncodeBatch(ctx, trainDocs, tokenizer, opts); err != nil {
		return nil, errors.WithMessage(err, "encoding train split")
	}
	if splits.Test, err = EncodeBatch(ctx, testDocs, tokenizer, opts); err != nil {
		return nil, errors.WithMessage(err, "encoding test split")
	}
	return splits, nil
}

// FilterLanguages returns the documents whose language is in languages.
// An empty languages list keeps every document.
func FilterLanguages(docs []Document, languages []string) []Document {
	if len(languages) == 0 {
		return docs
	}
	var kept []Document
	for _, doc := range docs {
		if slices.Contains(languages, doc.Language) {
			kept = append(kept, doc)
		}
	}
	return kept
}

// Split shuffles a copy of docs with the given seed and splits it into train and test.
func Split(docs []Document, trainRatio float64, seed uint64) (train, test []Document) {
	shuffled := slices.Clone(docs)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	nTrain := int(trainRatio * float64(len(shuffled)))
	return shuffled[:nTrain], shuffled[nTrain:]
}
