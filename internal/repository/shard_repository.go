package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/database"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// ShardRepository reads and writes job approval rows in one relational
// shard. Writes go through sp_upsert_job_approval, the only writer of the
// job_approvals row.
type ShardRepository struct {
	dbs   *database.Manager
	shard workitem.Provenance
}

// NewShardRepository creates a repository bound to one shard.
func NewShardRepository(dbs *database.Manager, shard workitem.Provenance) *ShardRepository {
	return &ShardRepository{dbs: dbs, shard: shard}
}

// Shard returns the shard the repository is bound to.
func (r *ShardRepository) Shard() workitem.Provenance {
	return r.shard
}

func (r *ShardRepository) db() (*database.DB, error) {
	return r.dbs.Acquire(r.shard.String())
}

const jobApprovalColumns = `
	job_id, job_number, client_name, reference, artwork_remark,
	file_status, file_received_date,
	soft_approval_reqd, soft_approval_status, soft_approval_sent_plan_date, soft_approval_sent_act_date,
	hard_approval_reqd, hard_approval_status, hard_approval_sent_plan_date, hard_approval_sent_act_date,
	mp_approval_reqd, mp_approval_status, mp_approval_sent_plan_date, mp_approval_sent_act_date,
	tooling_die, tooling_block, tooling_blanket, blanket_plan_date, blanket_act_date, tooling_remark,
	plate_output, plate_plan_date, plate_act_date, plate_remark,
	final_approval, final_approval_date,
	prepress_person_id, tooling_person_id, plate_person_id`

// Load returns the row for a job id.
func (r *ShardRepository) Load(ctx context.Context, key workitem.Key) (*workitem.WorkItem, error) {
	id, err := key.ShardID()
	if err != nil {
		return nil, err
	}
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + jobApprovalColumns + `
		FROM job_approvals
		WHERE job_id = $1`

	w, err := r.scanJobApproval(db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("job", key.String())
	}
	if err != nil {
		return nil, errors.Unavailable(r.shard.String(), err)
	}
	return w, nil
}

// Persist upserts the full derived row, re-reads it, and reports every
// column whose persisted value differs from what was written.
func (r *ShardRepository) Persist(ctx context.Context, current, derived workitem.WorkItem, actingUser string) (*WriteResult, error) {
	id, err := derived.Key.ShardID()
	if err != nil {
		return nil, err
	}
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	query := `CALL sp_upsert_job_approval(
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22,
		$23, $24, $25, $26,
		$27, $28,
		$29, $30, $31,
		$32)`

	soft, hard, mp := derived.Soft, derived.Hard, derived.MachineProof
	_, err = db.Exec(ctx, query,
		id, derived.Remarks,
		nullString(string(derived.FileStatus)), derived.FileReceivedDate,
		nullString(string(soft.Required)), nullString(string(soft.Status)),
		soft.PlanDate, soft.ActualDate,
		nullString(string(hard.Required)), nullString(string(hard.Status)),
		hard.PlanDate, hard.ActualDate,
		nullString(string(mp.Required)), nullString(string(mp.Status)),
		mp.PlanDate, mp.ActualDate,
		nullString(derived.Tooling.Die), nullString(derived.Tooling.Block), nullString(derived.Tooling.Blanket),
		derived.Tooling.BlanketPlanDate, derived.Tooling.BlanketActualDate, derived.Tooling.Remark,
		nullString(derived.Plate.Output), derived.Plate.PlanDate, derived.Plate.ActualDate, derived.Plate.Remark,
		derived.Final.Approved, derived.Final.ApprovedDate,
		derived.Assigned.Prepress.LedgerID, derived.Assigned.Tooling.LedgerID, derived.Assigned.Plate.LedgerID,
		actingUser,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to upsert job approval")
	}

	persisted, err := r.Load(ctx, derived.Key)
	if err != nil {
		return nil, err
	}

	return &WriteResult{
		Fields:     workitem.Diff(current, derived),
		Persisted:  *persisted,
		Mismatches: workitem.Mismatches(derived, *persisted, workitem.FieldNames()),
	}, nil
}

// PendingWorklist runs the shard's pending worklist once, unfiltered. Each
// row is already one outstanding operation.
func (r *ShardRepository) PendingWorklist(ctx context.Context) ([]WorklistRow, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT job_id, job_number, client_name, reference, artwork_remark,
		       file_status, operation, plan_date, ledger_id
		FROM sp_pending_worklist()
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, errors.Unavailable(r.shard.String(), err)
	}
	defer rows.Close()

	out := make([]WorklistRow, 0)
	for rows.Next() {
		var (
			jobID                                int64
			jobNumber, client, reference, remark *string
			fileStatus, operation                *string
			planDate                             *time.Time
			ledgerID                             *int64
		)
		if err := rows.Scan(&jobID, &jobNumber, &client, &reference, &remark,
			&fileStatus, &operation, &planDate, &ledgerID); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan worklist row")
		}
		out = append(out, WorklistRow{
			PendingRow: workitem.PendingRow{
				Provenance: r.shard,
				StoreID:    formatID(jobID),
				JobNumber:  deref(jobNumber),
				ClientName: deref(client),
				Reference:  deref(reference),
				Remarks:    deref(remark),
				FileStatus: normalizeFileStatus(deref(fileStatus)),
				Operation:  deref(operation),
				PlanDate:   planDate,
			},
			LedgerID: ledgerID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(r.shard.String(), err)
	}
	return out, nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ShardRepository) scanJobApproval(row rowScanner) (*workitem.WorkItem, error) {
	var (
		jobID                                int64
		jobNumber, client, reference, remark *string
		fileStatus                           *string
		fileReceived                         *time.Time
		soft, hard, mp                       approvalColumns
		die, block, blanket, toolRemark      *string
		blanketPlan, blanketActual           *time.Time
		plateOutput, plateRemark             *string
		platePlan, plateActual               *time.Time
		finalApproved                        *bool
		finalDate                            *time.Time
		prepressID, toolingID, platePersonID *int64
	)

	err := row.Scan(
		&jobID, &jobNumber, &client, &reference, &remark,
		&fileStatus, &fileReceived,
		&soft.required, &soft.status, &soft.planDate, &soft.actualDate,
		&hard.required, &hard.status, &hard.planDate, &hard.actualDate,
		&mp.required, &mp.status, &mp.planDate, &mp.actualDate,
		&die, &block, &blanket, &blanketPlan, &blanketActual, &toolRemark,
		&plateOutput, &platePlan, &plateActual, &plateRemark,
		&finalApproved, &finalDate,
		&prepressID, &toolingID, &platePersonID,
	)
	if err != nil {
		return nil, err
	}

	return &workitem.WorkItem{
		Key:              workitem.Key{Provenance: r.shard, ID: formatID(jobID)},
		JobNumber:        deref(jobNumber),
		ClientName:       deref(client),
		Reference:        deref(reference),
		Remarks:          deref(remark),
		FileStatus:       normalizeFileStatus(deref(fileStatus)),
		FileReceivedDate: fileReceived,
		Soft:             soft.approval(),
		Hard:             hard.approval(),
		MachineProof:     mp.approval(),
		Tooling: workitem.Tooling{
			Die:               deref(die),
			Block:             deref(block),
			Blanket:           deref(blanket),
			BlanketPlanDate:   blanketPlan,
			BlanketActualDate: blanketActual,
			Remark:            deref(toolRemark),
		},
		Plate: workitem.Plate{
			Output:     deref(plateOutput),
			PlanDate:   platePlan,
			ActualDate: plateActual,
			Remark:     deref(plateRemark),
		},
		Final: workitem.FinalApproval{
			Approved:     finalApproved != nil && *finalApproved,
			ApprovedDate: finalDate,
		},
		Assigned: workitem.Assignment{
			Prepress: workitem.Assignee{LedgerID: prepressID},
			Tooling:  workitem.Assignee{LedgerID: toolingID},
			Plate:    workitem.Assignee{LedgerID: platePersonID},
		},
	}, nil
}

type approvalColumns struct {
	required, status     *string
	planDate, actualDate *time.Time
}

func (c approvalColumns) approval() workitem.Approval {
	return workitem.Approval{
		Required:   normalizeRequired(deref(c.required)),
		Status:     normalizeStatus(deref(c.status)),
		PlanDate:   c.planDate,
		ActualDate: c.actualDate,
	}
}
