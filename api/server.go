package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisig-demo/internal/types"
)

// Server exposes a Sandbox over the same REST surface as the hosted custody API.
type Server struct {
	host     string
	port     int64
	apiKey   string
	sandbox  *Sandbox
	sdClient statsd.ClientInterface
	logger   *logrus.Logger
}

// NewServer returns a new server.
func NewServer(host string, port int64, apiKey string, sandbox *Sandbox, sdClient statsd.ClientInterface, logger *logrus.Logger) (*Server, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}
	if sandbox == nil {
		sandbox = NewSandbox()
	}
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		host:     host,
		port:     port,
		apiKey:   apiKey,
		sandbox:  sandbox,
		sdClient: sdClient,
		logger:   logger,
	}, nil
}

// Handler builds the echo router without binding a listener.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M")) // set maximum allowed size for a request body to 2M
	e.Use(s.statsdMiddleware)
	e.GET("/ping", s.Ping)

	grp := e.Group("/api/v1", s.AuthMiddleware)
	grp.POST("/accounts", s.CreateAccount)
	grp.PUT("/accounts/:accountId/signbase64", s.SignBase64)
	grp.POST("/wallets", s.CreateWallet)
	grp.PUT("/wallets/:walletId/signer", s.AddSigner)
	grp.PUT("/wallets/:walletId/generate", s.GenerateWallet)
	grp.POST("/signatures", s.CreateSignatureProcess)
	grp.PUT("/signatures/:processId/sign", s.SubmitSignature)
	grp.GET("/signatures/:processId", s.GetSignatureProcess)
	return e
}

func (s *Server) StartServer() error {
	e := s.Handler()
	e.Use(middleware.Logger())
	return e.Start(fmt.Sprintf("%s:%d", s.host, s.port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Custody sandbox is running")
}

// writeError maps sandbox errors onto the status codes the hosted API uses.
func (s *Server) writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errConflict):
		status = http.StatusConflict
	case errors.Is(err, errQuorum):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Sandbox request failed")
	}
	return c.JSON(status, types.ErrorResponse{Error: err.Error()})
}

func (s *Server) CreateAccount(c echo.Context) error {
	var req types.AccountCreateRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	account, err := s.sandbox.CreateAccount(req)
	if err != nil {
		return s.writeError(c, err)
	}
	s.incCounter("sandbox.account.created")
	s.logger.WithFields(logrus.Fields{
		"account":     account.ID,
		"external_id": account.ExternalID,
	}).Info("Account created")
	return c.JSON(http.StatusCreated, types.AccountCreateResponse{Account: &account})
}

func (s *Server) SignBase64(c echo.Context) error {
	var req types.SignDataRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	resp, err := s.sandbox.SignBase64(c.Param("accountId"), req.B64DataToSign)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateWallet(c echo.Context) error {
	var req types.WalletCreateRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	wallet, err := s.sandbox.CreateWallet(req)
	if err != nil {
		return s.writeError(c, err)
	}
	s.incCounter("sandbox.wallet.created")
	return c.JSON(http.StatusCreated, wallet)
}

func (s *Server) AddSigner(c echo.Context) error {
	var req types.Signer
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	wallet, err := s.sandbox.AddSigner(c.Param("walletId"), req)
	if err != nil {
		return s.writeError(c, err)
	}
	s.logger.WithFields(logrus.Fields{
		"wallet": wallet.ID,
		"signer": req.WalletAddress,
		"weight": req.SignatureWeight,
	}).Info("Signer registered")
	return c.JSON(http.StatusOK, wallet)
}

func (s *Server) GenerateWallet(c echo.Context) error {
	var req types.WalletGenerateRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	wallet, err := s.sandbox.GenerateWallet(c.Param("walletId"), req.MinWeightOfSigners)
	if err != nil {
		return s.writeError(c, err)
	}
	s.incCounter("sandbox.wallet.generated")
	return c.JSON(http.StatusOK, wallet)
}

func (s *Server) CreateSignatureProcess(c echo.Context) error {
	var req types.SignatureProcessCreateRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	process, err := s.sandbox.CreateProcess(req)
	if err != nil {
		return s.writeError(c, err)
	}
	s.incCounter("sandbox.process.created")
	return c.JSON(http.StatusCreated, process)
}

func (s *Server) SubmitSignature(c echo.Context) error {
	var req types.SignatureSubmitRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: fail to parse request, err: %w", errValidation, err))
	}
	process, err := s.sandbox.SubmitSignature(c.Param("processId"), req.B64Signature)
	if err != nil {
		return s.writeError(c, err)
	}
	s.logger.WithFields(logrus.Fields{
		"process": process.ID,
		"status":  process.Status,
	}).Info("Signature accepted")
	return c.JSON(http.StatusOK, process)
}

func (s *Server) GetSignatureProcess(c echo.Context) error {
	process, err := s.sandbox.GetProcess(c.Param("processId"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, process)
}
