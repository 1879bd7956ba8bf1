package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNoDocuments is returned by FindOne when nothing matches the filter.
// Absence is a valid outcome for most callers, not a failure.
var ErrNoDocuments = errors.New("store: no documents in result")

// DecodeError marks a document that exists but cannot be read into the
// shape the caller expects. It is kept distinct from transport errors so
// the corruption repair path can dispatch on it.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("store: document does not match expected shape: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection exposes the CRUD primitives the repositories are built on.
type Collection interface {
	// FindOne decodes the first matching document into out, or returns
	// ErrNoDocuments.
	FindOne(ctx context.Context, filter bson.M, out any) error
	// FindAll decodes every matching document into out, which must be a
	// pointer to a slice.
	FindAll(ctx context.Context, filter bson.M, out any) error
	// InsertOne stores a new document and returns its identity.
	InsertOne(ctx context.Context, doc any) (string, error)
	UpdateOne(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

// Store is a handle to the document store. The handle is shared read-only
// across all operations; it is never mutated after construction.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// decodeAll unmarshals raw documents into *[]T, classifying unmarshal
// failures as DecodeError.
func decodeAll(raws []bson.Raw, out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("store: FindAll requires a pointer to a slice, got %T", out)
	}
	slice := v.Elem()
	for _, raw := range raws {
		elem := reflect.New(slice.Type().Elem())
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return &DecodeError{Err: err}
		}
		slice = reflect.Append(slice, elem.Elem())
	}
	v.Elem().Set(slice)
	return nil
}
