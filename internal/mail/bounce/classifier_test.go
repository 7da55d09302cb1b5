package bounce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gocrm-io/gocrm-ce/internal/mail"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type fakeQueueItems struct {
	items map[string]*models.QueueItem
}

func (f *fakeQueueItems) GetByID(_ context.Context, id string) (*models.QueueItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return item, nil
}

type fakeMassEmails struct {
	emails map[string]*models.MassEmail
}

func (f *fakeMassEmails) GetByID(_ context.Context, id string) (*models.MassEmail, error) {
	me, ok := f.emails[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return me, nil
}

type fakeTargets struct {
	existing map[string]bool // "Type/ID"
}

func (f *fakeTargets) Resolve(_ context.Context, entityType, id string) (*repository.EntityRef, error) {
	if !f.existing[entityType+"/"+id] {
		return nil, repository.ErrNotFound
	}
	return &repository.EntityRef{Type: entityType, ID: id}, nil
}

type fakeAddresses struct {
	records   map[string]*models.EmailAddress
	invalided []string
}

func (f *fakeAddresses) GetByAddress(_ context.Context, address string) (*models.EmailAddress, error) {
	rec, ok := f.records[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeAddresses) MarkInvalid(_ context.Context, id string) error {
	f.invalided = append(f.invalided, id)
	return nil
}

type loggedBounce struct {
	campaignID string
	itemID     string
	target     repository.EntityRef
	address    string
	isHard     bool
}

type fakeCampaigns struct {
	logged []loggedBounce
}

func (f *fakeCampaigns) LogBounced(_ context.Context, campaignID string, item *models.QueueItem, target *repository.EntityRef, address string, isHard bool) error {
	f.logged = append(f.logged, loggedBounce{
		campaignID: campaignID,
		itemID:     item.ID,
		target:     *target,
		address:    address,
		isHard:     isHard,
	})
	return nil
}

func newTestClassifier(items *fakeQueueItems, emails *fakeMassEmails, targets *fakeTargets, addrs *fakeAddresses, campaigns *fakeCampaigns) *Classifier {
	if items == nil {
		items = &fakeQueueItems{items: map[string]*models.QueueItem{}}
	}
	if emails == nil {
		emails = &fakeMassEmails{emails: map[string]*models.MassEmail{}}
	}
	if targets == nil {
		targets = &fakeTargets{existing: map[string]bool{}}
	}
	if addrs == nil {
		addrs = &fakeAddresses{records: map[string]*models.EmailAddress{}}
	}
	if campaigns == nil {
		campaigns = &fakeCampaigns{}
	}
	return NewClassifier(items, emails, targets, addrs, campaigns, nil)
}

func TestIsBounceMatchesDaemonSenders(t *testing.T) {
	cases := []struct {
		from string
		want bool
	}{
		{"MAILER-DAEMON@mx.example.com", true},
		{"mailer-daemon@mx.example.com", true},
		{"Mail Delivery System <postmaster@example.com>", true},
		{"alice@example.com", false},
	}
	for _, tc := range cases {
		m := mail.NewMessageFromRaw("1", "From: "+tc.from+"\r\nTo: x@example.com\r\n\r\nbody")
		require.Equal(t, tc.want, IsBounce(m), "from=%s", tc.from)
	}
}

func TestProcessResolvesHeaderTokenAndHardBounce(t *testing.T) {
	raw := "From: MAILER-DAEMON@mx.example.com\r\n" +
		"To: sender@crm.example.com\r\n" +
		"\r\n" +
		"The following message could not be delivered.\r\n" +
		"Remote host said: 550 permanent failure\r\n" +
		"X-Queue-Item-Id: abc-123\r\n"

	massEmailID := "me-1"
	campaignID := "camp-1"
	items := &fakeQueueItems{items: map[string]*models.QueueItem{
		"abc-123": {
			ID:           "abc-123",
			MassEmailID:  &massEmailID,
			TargetType:   "Lead",
			TargetID:     "lead-7",
			EmailAddress: "bob@example.com",
			IsTest:       true,
		},
	}}
	emails := &fakeMassEmails{emails: map[string]*models.MassEmail{
		"me-1": {ID: "me-1", CampaignID: &campaignID},
	}}
	targets := &fakeTargets{existing: map[string]bool{"Lead/lead-7": true}}
	addrs := &fakeAddresses{records: map[string]*models.EmailAddress{
		"bob@example.com": {ID: "ea-1", Address: "bob@example.com"},
	}}
	campaigns := &fakeCampaigns{}

	c := newTestClassifier(items, emails, targets, addrs, campaigns)
	result, err := c.Process(context.Background(), mail.NewMessageFromRaw("1", raw))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.IsHard)
	require.Equal(t, "abc-123", result.QueueItemID)

	require.Equal(t, []string{"ea-1"}, addrs.invalided)
	require.Len(t, campaigns.logged, 1)
	entry := campaigns.logged[0]
	require.Equal(t, "camp-1", entry.campaignID)
	require.Equal(t, "abc-123", entry.itemID)
	require.Equal(t, repository.EntityRef{Type: "Lead", ID: "lead-7"}, entry.target)
	require.Equal(t, "bob@example.com", entry.address)
	require.True(t, entry.isHard)
}

func TestProcessFallsBackToRecipientTag(t *testing.T) {
	raw := "From: postmaster@example.com\r\n" +
		"To: user+bounce-qid-xyz-9@domain.com\r\n" +
		"\r\n" +
		"Delivery temporarily deferred.\r\n"

	items := &fakeQueueItems{items: map[string]*models.QueueItem{
		"xyz-9": {ID: "xyz-9", TargetType: "Contact", TargetID: "c-1", EmailAddress: "bob@example.com"},
	}}

	c := newTestClassifier(items, nil, nil, nil, nil)
	result, err := c.Process(context.Background(), mail.NewMessageFromRaw("1", raw))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, result.IsHard)
	require.Equal(t, "xyz-9", result.QueueItemID)
}

func TestProcessNotCorrelatedWithoutToken(t *testing.T) {
	raw := "From: MAILER-DAEMON@mx.example.com\r\n" +
		"To: sender@crm.example.com\r\n" +
		"\r\n" +
		"Undeliverable, permanent error.\r\n"

	c := newTestClassifier(nil, nil, nil, nil, nil)
	result, err := c.Process(context.Background(), mail.NewMessageFromRaw("1", raw))
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestProcessSoftBounceLeavesAddressValid(t *testing.T) {
	raw := "From: MAILER-DAEMON@mx.example.com\r\n" +
		"To: sender@crm.example.com\r\n" +
		"\r\n" +
		"Mailbox full, try again later.\r\n" +
		"X-Queue-Item-Id: qi-soft\r\n"

	items := &fakeQueueItems{items: map[string]*models.QueueItem{
		"qi-soft": {ID: "qi-soft", TargetType: "Contact", TargetID: "c-1", EmailAddress: "bob@example.com"},
	}}
	addrs := &fakeAddresses{records: map[string]*models.EmailAddress{
		"bob@example.com": {ID: "ea-1", Address: "bob@example.com"},
	}}

	c := newTestClassifier(items, nil, nil, addrs, nil)
	result, err := c.Process(context.Background(), mail.NewMessageFromRaw("1", raw))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, result.IsHard)
	require.Empty(t, addrs.invalided)
}

func TestProcessSkipsLogWhenTargetGone(t *testing.T) {
	raw := "From: MAILER-DAEMON@mx.example.com\r\n" +
		"To: sender@crm.example.com\r\n" +
		"\r\n" +
		"X-Queue-Item-Id: qi-1\r\n"

	massEmailID := "me-1"
	campaignID := "camp-1"
	items := &fakeQueueItems{items: map[string]*models.QueueItem{
		"qi-1": {ID: "qi-1", MassEmailID: &massEmailID, TargetType: "Lead", TargetID: "gone", EmailAddress: "bob@example.com"},
	}}
	emails := &fakeMassEmails{emails: map[string]*models.MassEmail{
		"me-1": {ID: "me-1", CampaignID: &campaignID},
	}}
	campaigns := &fakeCampaigns{}

	c := newTestClassifier(items, emails, &fakeTargets{existing: map[string]bool{}}, nil, campaigns)
	result, err := c.Process(context.Background(), mail.NewMessageFromRaw("1", raw))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, campaigns.logged)
}
