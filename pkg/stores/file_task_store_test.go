package stores

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

func TestFileTaskStore(t *testing.T) {
	Convey("Given a file-backed task store rooted in a temp dir", t, func() {
		dir := t.TempDir()
		store, err := NewFileTaskStore(dir)
		So(err, ShouldBeNil)

		Convey("Save then Load round-trips the task", func() {
			task := a2a.NewTask()
			task.Status.State = a2a.TaskStateCompleted

			So(store.Save(task), ShouldBeNil)

			loaded, ok := store.Load(task.ID)
			So(ok, ShouldBeTrue)
			So(loaded.ID, ShouldEqual, task.ID)
			So(loaded.Status.State, ShouldEqual, a2a.TaskStateCompleted)
		})

		Convey("task ids containing path separators are rejected", func() {
			_, ok := store.Load("../escape")
			So(ok, ShouldBeFalse)

			ok = store.SetPushNotification("../escape", a2a.PushNotificationConfig{URL: "x"})
			So(ok, ShouldBeFalse)
		})

		Convey("push notification config round-trips", func() {
			task := a2a.NewTask()
			So(store.Save(task), ShouldBeNil)

			ok := store.SetPushNotification(task.ID, a2a.PushNotificationConfig{URL: "https://example.com/hook"})
			So(ok, ShouldBeTrue)

			cfg, ok := store.GetPushNotification(task.ID)
			So(ok, ShouldBeTrue)
			So(cfg.URL, ShouldEqual, "https://example.com/hook")
		})
	})
}
