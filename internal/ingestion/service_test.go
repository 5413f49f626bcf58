package ingestion

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/progress"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	members *stubMemberRepo
	trips   *stubTripRepo
	logs    *stubLogRepo
	tracker *progress.MemoryTracker
	service *Service
}

func newFixture(opts ...Option) *fixture {
	logger, _ := test.NewNullLogger()
	f := &fixture{
		members: &stubMemberRepo{},
		trips:   newStubTripRepo(),
		logs:    newStubLogRepo(),
		tracker: progress.NewMemoryTracker(time.Minute, 0),
	}
	opts = append([]Option{WithLogger(logger), WithTracker(f.tracker)}, opts...)
	f.service = NewService(f.members, f.trips, f.logs, opts...)
	return f
}

func memberRequest(payload []byte) Request {
	return Request{
		Type:     domain.ImportTypeMembers,
		FileName: "members.xlsx",
		Data:     bytes.NewReader(payload),
	}
}

func TestImportMembersKeepsCenturyOfDateCells(t *testing.T) {
	f := newFixture()
	payload := datedMemberWorkbook(t, time.Date(1955, time.March, 5, 0, 0, 0, 0, time.UTC))

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, domain.ResultSuccess, report.Results[0].Status, report.Results[0].Error)

	require.Len(t, f.members.members, 1)
	assert.Equal(t, "1955-03-05", f.members.members[0].DateOfBirth)
}

func TestImportMembersSurvivesCallerCancellation(t *testing.T) {
	f := newFixture()
	payload := workbook(t,
		MemberColumns,
		memberRecord("Anand Joshi", "anand@example.com", "male", "premium"),
		memberRecord("Kavya Reddy", "kavya@example.com", "female", "regular"),
		memberRecord("Suresh Pillai", "suresh@example.com", "male", "honorary"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	report, err := f.service.Import(ctx, memberRequest(payload), func(processed, total, percent int) {
		if processed == 1 {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, domain.ImportSummary{Total: 3, Successful: 3, Failed: 0}, report.Summary)
	assert.Equal(t, []string{"H00001", "P00001", "R00001"}, f.members.memberIDs())
	assert.Equal(t, domain.ImportStatusCompleted, f.logs.only(t).Status)
}

func TestImportMembersPartialBatch(t *testing.T) {
	f := newFixture()
	payload := workbook(t,
		MemberColumns,
		memberRecord("Anand Joshi", "anand@example.com", "male", "premium"),
		memberRecord("Kavya Reddy", "kavya@example.com", "unknown", "regular"),
	)

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.ResultSuccess, report.Results[0].Status)
	assert.Equal(t, 2, report.Results[0].Row)
	assert.Equal(t, "P00001", report.Results[0].MemberID)
	assert.Equal(t, domain.ResultError, report.Results[1].Status)
	assert.Equal(t, 3, report.Results[1].Row)
	assert.Equal(t, MsgGenderInvalid, report.Results[1].Error)

	log := f.logs.only(t)
	assert.Equal(t, 2, log.TotalRows)
	assert.Equal(t, 1, log.SuccessfulRows)
	assert.Equal(t, 1, log.FailedRows)
	assert.Equal(t, domain.ImportStatusPartial, log.Status)
	assert.Equal(t, []domain.ImportRowError{{Row: 3, Error: MsgGenderInvalid}}, log.ErrorDetails)
	require.NotNil(t, log.CompletedAt)

	require.NotNil(t, report.Log)
	assert.Equal(t, log.ID, report.Log.ID)
	assert.Equal(t, domain.ImportSummary{Total: 2, Successful: 1, Failed: 1}, report.Summary)
}

func TestImportMembersAllSucceedIsCompleted(t *testing.T) {
	f := newFixture()
	payload := workbook(t,
		MemberColumns,
		memberRecord("A One", "a1@example.com", "male", "regular"),
		memberRecord("A Two", "a2@example.com", "female", "regular"),
		memberRecord("A Three", "a3@example.com", "other", "regular"),
		memberRecord("A Four", "a4@example.com", "male", "honorary"),
	)

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, result := range report.Results {
		require.Equal(t, domain.ResultSuccess, result.Status, result.Error)
		require.Regexp(t, memberIDPattern, result.MemberID)
		require.False(t, ids[result.MemberID], "duplicate id %s", result.MemberID)
		ids[result.MemberID] = true
	}
	assert.Equal(t, []string{"R00001", "R00002", "R00003", "H00001"}, []string{
		report.Results[0].MemberID, report.Results[1].MemberID, report.Results[2].MemberID, report.Results[3].MemberID,
	})
	assert.Equal(t, domain.ImportStatusCompleted, f.logs.only(t).Status)
}

func TestImportMembersDuplicateEmail(t *testing.T) {
	f := newFixture()
	f.members.seed("P00004", "existing@example.com")
	payload := workbook(t,
		MemberColumns,
		memberRecord("Returning Member", "Existing@Example.com ", "female", "premium"),
	)

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, MsgEmailExists, report.Results[0].Error)
	assert.Equal(t, []string{"P00004"}, f.members.memberIDs())
	assert.Zero(t, f.members.lastIDCalls, "no identifier may be consumed")
	assert.Zero(t, f.members.createCalls)
}

func TestImportEmptySheetAbortsWithoutLog(t *testing.T) {
	f := newFixture()

	_, err := f.service.Import(context.Background(), memberRequest(workbook(t, MemberColumns)), nil)
	require.ErrorIs(t, err, ErrEmptyFile)
	assert.Equal(t, "Excel file is empty", err.Error())
	assert.Zero(t, f.logs.createCalls)
}

func TestImportRejectsNonExcelUpload(t *testing.T) {
	f := newFixture()
	req := memberRequest([]byte("full_name\nx\n"))
	req.FileName = "members.csv"

	_, err := f.service.Import(context.Background(), req, nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Zero(t, f.logs.createCalls)
}

func TestImportLogCreationFailureAbortsBeforeRows(t *testing.T) {
	f := newFixture()
	f.logs.createErr = errStoreDown
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	_, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.ErrorIs(t, err, ErrCreateLog)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, f.members.createCalls)
}

func TestImportContinuesPastStoreErrors(t *testing.T) {
	f := newFixture()
	f.members.existsErr = errStoreDown
	payload := workbook(t,
		MemberColumns,
		memberRecord("A", "a@example.com", "male", "regular"),
		[]string{"", "b@example.com", "9000000000", "1990-01-01", "male", "regular", "addr"},
	)

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Contains(t, report.Results[0].Error, "connection refused")
	assert.Equal(t, MsgFullNameRequired, report.Results[1].Error)
	assert.Equal(t, 2, f.logs.only(t).FailedRows)
}

func TestImportInsertErrorUsesStoreMessage(t *testing.T) {
	f := newFixture()
	f.members.createErr = errors.New("value too long for type character varying(20)")
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)
	assert.Equal(t, "value too long for type character varying(20)", report.Results[0].Error)
}

func TestImportRetriesWhenMemberIDIsTaken(t *testing.T) {
	f := newFixture()
	f.members.seed("R00001", "other@example.com")
	stale := true
	f.members.staleLastID = func(_ string, actual string) string {
		if stale {
			stale = false
			return ""
		}
		return actual
	}
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)
	assert.Equal(t, "R00002", report.Results[0].MemberID)
	assert.Equal(t, 2, f.members.createCalls)
}

func TestImportGivesUpAfterAllocationAttempts(t *testing.T) {
	f := newFixture(WithAllocationAttempts(2))
	f.members.seed("R00001", "other@example.com")
	f.members.staleLastID = func(string, string) string { return "" }
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	report, err := f.service.Import(context.Background(), memberRequest(payload), nil)
	require.NoError(t, err)
	assert.Equal(t, `duplicate key value violates unique constraint "members_member_id_key"`, report.Results[0].Error)
	assert.Equal(t, 2, f.members.createCalls)
}

func TestImportReportsProgressAfterEveryRow(t *testing.T) {
	f := newFixture()
	payload := workbook(t,
		MemberColumns,
		memberRecord("A", "a@example.com", "male", "regular"),
		memberRecord("B", "", "male", "regular"),
		memberRecord("C", "c@example.com", "male", "regular"),
	)

	var percents []int
	_, err := f.service.Import(context.Background(), memberRequest(payload), func(processed, total, percent int) {
		assert.Equal(t, 3, total)
		percents = append(percents, percent)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{33, 67, 100}, percents)
}

func TestImportPreservesRowOrder(t *testing.T) {
	f := newFixture()
	records := [][]string{MemberColumns}
	for i := 0; i < 12; i++ {
		email := uuid.NewString() + "@example.com"
		if i%3 == 1 {
			email = "broken"
		}
		records = append(records, memberRecord("Member", email, "female", "regular"))
	}

	report, err := f.service.Import(context.Background(), memberRequest(workbook(t, records...)), nil)
	require.NoError(t, err)

	for idx, result := range report.Results {
		assert.Equal(t, idx+2, result.Row)
	}
	summary := report.Summary
	assert.Equal(t, summary.Total, summary.Successful+summary.Failed)
	assert.Equal(t, 4, summary.Failed)
}

func TestImportTripAllocations(t *testing.T) {
	f := newFixture()
	tripID := f.trips.addTrip()
	registered := f.members.seed("P00001", "p1@example.com")
	unregistered := f.members.seed("R00001", "r1@example.com")
	f.trips.confirm(tripID, registered.ID)

	payload := workbook(t,
		TripAllocationColumns,
		allocationRecord("P00001", "101", "B-7"),
		allocationRecord("R00001", "102", ""),
		allocationRecord("H00099", "103", ""),
		allocationRecord("P00001", "", ""),
	)

	report, err := f.service.Import(context.Background(), Request{
		Type:     domain.ImportTypeTripAllocations,
		FileName: "allocations.xls",
		TripID:   tripID,
		Data:     bytes.NewReader(payload),
	}, nil)
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	assert.Equal(t, domain.ResultSuccess, report.Results[0].Status)
	assert.Equal(t, "P00001", report.Results[0].MemberID)
	assert.Equal(t, MsgMemberNotRegistered, report.Results[1].Error)
	assert.Equal(t, MsgMemberNotFound, report.Results[2].Error)
	assert.Equal(t, MsgAllocationRequired, report.Results[3].Error)

	assert.Len(t, f.trips.assignments, 1)
	_, written := f.trips.assignments[assignmentKey{tripID, unregistered.ID}]
	assert.False(t, written)

	log := f.logs.only(t)
	require.NotNil(t, log.TripID)
	assert.Equal(t, tripID, *log.TripID)
	assert.Equal(t, domain.ImportTypeTripAllocations, log.ImportType)
	assert.Equal(t, domain.ImportStatusPartial, log.Status)
}

func TestImportTripAllocationsUnknownTrip(t *testing.T) {
	f := newFixture()
	payload := workbook(t, TripAllocationColumns, allocationRecord("P00001", "101", ""))

	_, err := f.service.Import(context.Background(), Request{
		Type:     domain.ImportTypeTripAllocations,
		FileName: "allocations.xlsx",
		TripID:   uuid.New(),
		Data:     bytes.NewReader(payload),
	}, nil)
	require.ErrorIs(t, err, ErrTripNotFound)
	assert.Zero(t, f.logs.createCalls)
}

func TestStartRunsInBackgroundAndPublishesResults(t *testing.T) {
	f := newFixture()
	payload := workbook(t,
		MemberColumns,
		memberRecord("A", "a@example.com", "male", "premium"),
		memberRecord("B", "b@example.com", "female", "gold"),
	)

	log, err := f.service.Start(context.Background(), memberRequest(payload))
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusProcessing, log.Status)
	assert.Equal(t, 2, log.TotalRows)

	f.service.Wait()

	snapshot, err := f.service.Progress(context.Background(), log.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Done)
	assert.Equal(t, 100, snapshot.Percent)
	require.Len(t, snapshot.Results, 2)
	assert.Equal(t, MsgMembershipInvalid, snapshot.Results[1].Error)

	stored, err := f.service.GetLog(context.Background(), log.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportStatusPartial, stored.Status)
}

func TestProgressFallsBackToStoredLog(t *testing.T) {
	f := newFixture()
	log := domain.NewImportLog(domain.ImportTypeMembers, "old.xlsx", 5, nil, nil)
	log = log.Completed(domain.ImportSummary{Total: 5, Successful: 5}, nil, time.Now())
	f.logs.logs[log.ID] = log

	snapshot, err := f.service.Progress(context.Background(), log.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Done)
	assert.Nil(t, snapshot.Results)
	require.NotNil(t, snapshot.Summary)
	assert.Equal(t, 5, snapshot.Summary.Successful)
}

func TestRunTwiceIsRejected(t *testing.T) {
	f := newFixture()
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	batch, err := f.service.Begin(context.Background(), memberRequest(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.TotalRows())

	_, err = batch.Run(context.Background(), nil)
	require.NoError(t, err)
	_, err = batch.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrBatchAlreadyRun)
}

func TestRunReportsLogCompletionFailure(t *testing.T) {
	f := newFixture()
	payload := workbook(t, MemberColumns, memberRecord("A", "a@example.com", "male", "regular"))

	batch, err := f.service.Begin(context.Background(), memberRequest(payload))
	require.NoError(t, err)
	f.logs.completeErr = errStoreDown

	report, err := batch.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrCompleteLog)
	assert.Equal(t, 1, report.Summary.Successful)
	assert.Equal(t, domain.ImportStatusProcessing, f.logs.only(t).Status)
}
