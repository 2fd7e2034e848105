package stores

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

func TestInMemoryTaskStore(t *testing.T) {
	Convey("Given an empty in-memory task store", t, func() {
		store := NewInMemoryTaskStore()

		Convey("Load on an unknown id returns ok=false", func() {
			task, ok := store.Load("missing")
			So(ok, ShouldBeFalse)
			So(task, ShouldBeNil)
		})

		Convey("Save then Load round-trips the task", func() {
			task := a2a.NewTask()
			task.Status.State = a2a.TaskStateWorking

			err := store.Save(task)
			So(err, ShouldBeNil)

			loaded, ok := store.Load(task.ID)
			So(ok, ShouldBeTrue)
			So(loaded.ID, ShouldEqual, task.ID)
			So(loaded.Status.State, ShouldEqual, a2a.TaskStateWorking)
		})

		Convey("Save rejects an invalid task", func() {
			err := store.Save(&a2a.Task{})
			So(err, ShouldNotBeNil)
		})

		Convey("push notification config round-trips once a task exists", func() {
			task := a2a.NewTask()
			So(store.Save(task), ShouldBeNil)

			ok := store.SetPushNotification(task.ID, a2a.PushNotificationConfig{URL: "https://example.com/hook"})
			So(ok, ShouldBeTrue)

			cfg, ok := store.GetPushNotification(task.ID)
			So(ok, ShouldBeTrue)
			So(cfg.URL, ShouldEqual, "https://example.com/hook")
		})

		Convey("push notification on an unknown task fails", func() {
			ok := store.SetPushNotification("missing", a2a.PushNotificationConfig{URL: "x"})
			So(ok, ShouldBeFalse)
		})
	})
}
