package notify

import (
	"fmt"

	"github.com/fieldsentry/backend/internal/models"
)

func AssignmentText(ev models.Event) string {
	return fmt.Sprintf("You have been assigned to duty: %s on %s at %s. Location: %s. Check your duty panel for details.",
		ev.Name, ev.StartsAt.Format("Mon Jan 2"), ev.StartsAt.Format("15:04"), ev.LocationName)
}

func EventStartText(ev models.Event) string {
	return fmt.Sprintf("URGENT: Event %q is starting now. Please check in immediately if you haven't already.", ev.Name)
}

func IdleText(ev models.Event) string {
	return fmt.Sprintf("ALERT: You have been idle for more than 10 minutes during %s. Please resume active duty immediately.", ev.Name)
}

func ZoneViolationText(ev models.Event) string {
	return fmt.Sprintf("URGENT: You are outside the designated zone for %s. Return to the assigned area immediately.", ev.Name)
}

func ZoneViolationCallText(ev models.Event) string {
	return fmt.Sprintf("This is an urgent alert. You are currently outside the designated duty zone for %s. Please return to the assigned area immediately and contact your supervisor.", ev.Name)
}

func LowBatteryText(ev models.Event) string {
	return fmt.Sprintf("WARNING: Your device battery is low during %s. Charge it as soon as possible to stay reachable.", ev.Name)
}

func EmergencyText(entry models.RosterEntry, ev models.Event, address string) string {
	if address == "" {
		address = "Unknown location"
	}
	return fmt.Sprintf("EMERGENCY ALERT: Officer %s (%s) has triggered an emergency alert at %s during %s. Immediate assistance required.",
		entry.Badge, entry.Name, address, ev.Name)
}
