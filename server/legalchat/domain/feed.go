package domain

// The admin and user feeds are two filtered views over one notification
// collection. Replies flow both ways and therefore satisfy both predicates.

var adminFeedTypes = map[NotificationType]struct{}{
	NotificationUnblockRequest: {},
	NotificationIssue:          {},
	NotificationReply:          {},
}

var userFacingTypes = map[NotificationType]struct{}{
	NotificationReport:  {},
	NotificationWarning: {},
	NotificationInfo:    {},
	NotificationUnblock: {},
	NotificationReply:   {},
}

func AdminFeedTypes() []NotificationType {
	return []NotificationType{NotificationUnblockRequest, NotificationIssue, NotificationReply}
}

func (n Notification) InAdminFeed() bool {
	if _, ok := adminFeedTypes[n.Type]; ok {
		return true
	}
	if n.Type == NotificationLegacy {
		return true
	}
	return n.Type == NotificationUnblock && n.UserID == ""
}

func (n Notification) InUserFeed(userID string) bool {
	return userID != "" && n.UserID == userID
}

// UserFacing reports whether a notification owned by a user should be shown
// to that user. Requests the user filed themselves stay out of their view.
func (n Notification) UserFacing() bool {
	_, ok := userFacingTypes[n.Type]
	return ok
}

func IsAdminSendable(kind NotificationType) bool {
	switch kind {
	case NotificationReport, NotificationWarning, NotificationInfo:
		return true
	default:
		return false
	}
}
