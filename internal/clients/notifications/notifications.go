package notifications

type Notifier interface {
	NotifySceneOrganized(title, destination string)
	NotifyOrganizeError(title string, err error)
	NotifyNotEnoughSpace(title string)
	NotifySyncComplete(kind string, updated, failed int)
	Test() error
}
