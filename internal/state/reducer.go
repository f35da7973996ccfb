package state

import "slices"

// Reduce is the single source of truth for state transitions. Pure: same
// (state, action) in, same state out, no side effects. Unknown action kinds
// return the input unchanged so newer peers can ship new actions first.
func Reduce(s State, a Action) State {
	switch a.Kind {
	case ActionSetIdentity:
		s.Identity = a.Identity

	case ActionSetGuardians:
		s.Guardians = slices.Clone(a.Guardians)
		s.PendingGuardians = slices.Clone(a.PendingGuardians)

	case ActionSetWards:
		s.Wards = slices.Clone(a.Wards)

	case ActionSetIsRecovering:
		s.IsRecovering = a.Flag

	case ActionSetIsWalletFunded:
		s.IsWalletFunded = a.Flag

	case ActionPushGuardianRequest:
		for _, req := range s.GuardianRequests {
			if req.WardAddress == a.GuardianRequest.WardAddress {
				return s
			}
		}
		s.GuardianRequests = append(slices.Clone(s.GuardianRequests), a.GuardianRequest)

	case ActionRemoveGuardianRequest:
		kept := s.GuardianRequests[:0:0]
		for _, req := range s.GuardianRequests {
			if req.WardAddress != a.WardAddress {
				kept = append(kept, req)
			}
		}
		s.GuardianRequests = kept

	case ActionPushRecoveryRequest:
		for _, req := range s.RecoveryRequests {
			if req.WardAddress == a.RecoveryRequest.WardAddress {
				return s
			}
		}
		s.RecoveryRequests = append(slices.Clone(s.RecoveryRequests), a.RecoveryRequest)

	case ActionRemoveRecoveryRequest:
		kept := s.RecoveryRequests[:0:0]
		for _, req := range s.RecoveryRequests {
			if req.WardAddress != a.WardAddress {
				kept = append(kept, req)
			}
		}
		s.RecoveryRequests = kept

	case ActionSetShouldReloadGuardians:
		s.ShouldReloadGuardians = a.Flag

	case ActionSetShouldCheckRecoveryProgress:
		s.ShouldCheckRecoveryProgress = a.Flag

	case ActionSetShouldRefreshBalance:
		s.ShouldRefreshBalance = a.Flag
	}
	return s
}
