// internal/app/system/txn/txn.go

// Package txn wraps multi-write units in a MongoDB transaction when the
// deployment supports one, and degrades to plain sequential execution when
// it does not (standalone servers have no replica-set sessions).
//
// The degraded path keeps the writes in their stated order, so invariants
// that depend on ordering (materialize-after-accept, attendees-before-event
// deletion) still hold; only all-or-nothing visibility is lost, and the
// unique indexes make a retry after a partial failure safe.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a transaction on db's client. When the server
// reports that transactions are unsupported, fn runs once more outside a
// transaction and a warning is logged.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			log.Warn("transactions unsupported; running writes sequentially", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		log.Warn("transactions unsupported; running writes sequentially", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// Server error codes that indicate the deployment cannot run transactions.
//
//	20  IllegalOperation (e.g. "Transaction numbers are only allowed on a replica set member")
//	51  illegal operation for this deployment
//	263 operation not permitted in a multi-document transaction
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err means transactions are unavailable on
// this deployment (as opposed to the transaction merely failing).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}

	// Fallback keyword heuristics for drivers/proxies that flatten the
	// command error into a plain string.
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "transaction") &&
		(strings.Contains(s, "replica set") ||
			strings.Contains(s, "session") ||
			strings.Contains(s, "illegal operation")) {
		return true
	}
	if strings.Contains(s, "session") && strings.Contains(s, "not supported") {
		return true
	}
	return false
}
