package task_test

import (
	"context"
	"testing"

	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

func TestRunnables_PutGetDelete(t *testing.T) {
	table := task.NewRunnables()
	tid := id.NewTaskID()
	r := task.RunnableFunc{Name: "r", Fn: func(context.Context) error { return nil }}

	if _, ok := table.Get(tid); ok {
		t.Fatal("empty table returned a runnable")
	}

	table.Put(tid, r)
	got, ok := table.Get(tid)
	if !ok || got.DisplayName() != "r" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d", table.Len())
	}

	table.Delete(tid)
	if _, ok := table.Get(tid); ok || table.Len() != 0 {
		t.Error("Delete did not remove the runnable")
	}
}
