package repository

import "errors"

// ErrNotTracked is returned by stock updates that matched no tracked product.
var ErrNotTracked = errors.New("product is volatile or does not exist")
