package crawler

import (
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/queue"
	"github.com/Sriram-PR/link-crawler/pkg/robots"
)

// pageJob is the state of one page from dequeue to completion. It is created
// per item and owned by that item's goroutine and its scan callbacks.
type pageJob struct {
	id         string
	pageURL    *url.URL
	auth       models.Credentials
	customData any
	response   *models.ResponseSummary
	directives *robots.Directives
	state      models.PageState
	startTime  time.Time

	done func()
	once sync.Once
	log  *logrus.Entry
}

func newPageJob(item queue.Item, data pageData, done func(), log *logrus.Entry) *pageJob {
	return &pageJob{
		id:         item.ID,
		pageURL:    item.URL,
		auth:       data.Auth,
		customData: data.CustomData,
		state:      models.PageStatePending,
		startTime:  time.Now(),
		done:       done,
		log:        log.WithFields(logrus.Fields{"id": item.ID, "url": auth.Redact(item.URL)}),
	}
}

// release drops references to the page's response and credentials
func (j *pageJob) release() {
	j.response = nil
	j.directives = nil
	j.auth = models.Credentials{}
	j.done = nil
}
