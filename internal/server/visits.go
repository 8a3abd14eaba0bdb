package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
)

// VisitTrack returns the ordered GPS track for a visit. Only the
// visit's participants and admins may read it.
func (s *Server) VisitTrack(c *gin.Context) {
	visitID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	visit, err := s.visitSvc.FindByID(c.Request.Context(), visitID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !canViewVisit(user, visit) {
		AbortWithError(c, ErrForbidden)
		return
	}

	track, err := s.visitSvc.Track(c.Request.Context(), visitID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if track == nil {
		track = []visitdomain.Location{}
	}
	c.JSON(http.StatusOK, gin.H{"visitId": visit.ID.String(), "track": track})
}

func canViewVisit(user *userdomain.User, visit *visitdomain.Visit) bool {
	if user.Role == userdomain.RoleAdmin {
		return true
	}
	if visit.PatientID == user.ID {
		return true
	}
	if visit.NurseID != nil && *visit.NurseID == user.ID {
		return true
	}
	if visit.DoctorID != nil && *visit.DoctorID == user.ID {
		return true
	}
	return false
}
