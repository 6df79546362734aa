package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"onlinemon/internal/snapshot"
	"onlinemon/pkg/domain"
)

func decode(seq domain.SequentialID, fields map[string]string) (snapshot.Snapshot, error) {
	snap := snapshot.Snapshot{Sequential: seq, Name: fields["name"]}

	var errs error
	var err error
	snap.BatchID, err = uuid.Parse(fields["batch_id"])
	errs = multierr.Append(errs, err)
	snap.Run, err = strconv.Atoi(fields["run"])
	errs = multierr.Append(errs, err)
	unique, err := strconv.ParseInt(fields["unique_id"], 10, 64)
	errs = multierr.Append(errs, err)
	snap.Unique = domain.UniqueID(unique)
	snap.Dimension, err = strconv.Atoi(fields["dimension"])
	errs = multierr.Append(errs, err)
	snap.Entries, err = strconv.ParseUint(fields["entries"], 10, 64)
	errs = multierr.Append(errs, err)
	errs = multierr.Append(errs, json.Unmarshal([]byte(fields["bins"]), &snap.Bins))
	snap.TakenAt, err = time.Parse(time.RFC3339Nano, fields["taken_at"])
	errs = multierr.Append(errs, err)

	if errs != nil {
		return snapshot.Snapshot{}, fmt.Errorf("decode snapshot %d: %w", seq, errs)
	}
	return snap, nil
}
